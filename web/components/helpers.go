// Package components holds the server-rendered pages.
package components

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"casegen/internal/models"

	"github.com/a-h/templ"
)

// navItem はナビゲーションの1項目
type navItem struct {
	Href  string
	Label string
}

var nav = []navItem{
	{"/", "Dashboard"},
	{"/generator", "Generator"},
	{"/upload", "Bulk Upload"},
	{"/jobs", "History"},
	{"/about", "About"},
}

var exportFormats = []string{"json", "yaml", "csv", "markdown"}

// statCard はダッシュボードの数値カード
type statCard struct {
	Label string
	Value string
}

func statCards(stats *models.JobStats) []statCard {
	if stats == nil {
		stats = &models.JobStats{}
	}
	return []statCard{
		{"Jobs", strconv.FormatInt(stats.TotalJobs, 10)},
		{"Test cases generated", strconv.FormatInt(stats.TestCasesGenerated, 10)},
		{"In progress", strconv.FormatInt(stats.ByStatus[models.JobStatusProcessing], 10)},
		{"Success rate", fmt.Sprintf("%.0f%%", stats.SuccessRate*100)},
	}
}

func exportURL(jobID, format string) templ.SafeURL {
	return templ.URL("/api/jobs/" + url.PathEscape(jobID) + "/export?format=" + url.QueryEscape(format))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

func caseCount(job models.Job) string {
	if job.Result == nil {
		return "0"
	}
	return strconv.Itoa(len(job.Result.GeneratedTestCases))
}

func shortID(id string) string {
	return id[:min(8, len(id))]
}

// sortedFiles はファイル名順に並べたコピーを返す
func sortedFiles(files []models.BatchFile) []models.BatchFile {
	out := append([]models.BatchFile(nil), files...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

func elapsed(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}
