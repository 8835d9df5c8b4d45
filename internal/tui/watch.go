// Package tui renders a generation job in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"casegen/internal/models"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// refreshInterval is how often the view re-reads the poller. It only reads
// local state; network requests stay on the poller's own interval.
const refreshInterval = 200 * time.Millisecond

// Source is the part of the poller the view needs.
type Source interface {
	Snapshot() models.Job
	Active() bool
	Cancel()
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	caseStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	priorityStyle = map[models.Priority]lipgloss.Style{
		models.PriorityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		models.PriorityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		models.PriorityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		models.PriorityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
	statusStyle = map[models.JobStatus]lipgloss.Style{
		models.JobStatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		models.JobStatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		models.JobStatusProcessing: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

type snapshotMsg struct {
	job    models.Job
	active bool
}

// Model is the bubbletea model for watching one job.
type Model struct {
	source   Source
	spinner  spinner.Model
	job      models.Job
	started  time.Time
	width    int
	done     bool
	canceled bool
}

// NewModel creates a watch view over source.
func NewModel(source Source) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		source:  source,
		spinner: s,
		job:     source.Snapshot(),
		started: time.Now(),
		width:   80,
	}
}

// Job returns the last observed job.
func (m Model) Job() models.Job { return m.job }

// Canceled reports whether the user stopped watching before the job ended.
func (m Model) Canceled() bool { return m.canceled }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.read())
}

func (m Model) read() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{job: m.source.Snapshot(), active: m.source.Active()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.done {
				m.source.Cancel()
				m.canceled = true
			}
			m.job = m.source.Snapshot()
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case snapshotMsg:
		m.job = msg.job
		if !msg.active {
			m.done = true
			return m, tea.Quit
		}
		return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg {
			return snapshotMsg{job: m.source.Snapshot(), active: m.source.Active()}
		})
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if !m.done {
		var b strings.Builder
		b.WriteString(titleStyle.Render("Generating test cases") + "\n\n")
		if m.job.ID != "" {
			b.WriteString(labelStyle.Render("job ") + m.job.ID + "\n")
		}
		fmt.Fprintf(&b, "%s %s  %s\n\n", m.spinner.View(), m.job.Status,
			labelStyle.Render(time.Since(m.started).Round(time.Second).String()))
		b.WriteString(labelStyle.Render("q to stop watching"))
		return b.String()
	}
	return Render(m.job, m.width)
}

// Run shows the watch view until the job leaves processing or the user quits.
func Run(ctx context.Context, source Source) (Model, error) {
	final, err := tea.NewProgram(NewModel(source), tea.WithContext(ctx)).Run()
	if err != nil {
		return Model{}, err
	}
	return final.(Model), nil
}

// Render formats a job for the terminal.
func Render(job models.Job, width int) string {
	if width <= 0 {
		width = 80
	}
	var b strings.Builder

	status := statusStyle[job.Status].Render(string(job.Status))
	if job.ID != "" {
		fmt.Fprintf(&b, "%s %s  %s\n", labelStyle.Render("job"), job.ID, status)
	} else {
		fmt.Fprintf(&b, "%s\n", status)
	}
	if msg := job.ErrorMessage(); msg != "" {
		b.WriteString(errorStyle.Render(msg) + "\n")
	}
	if job.Status == models.JobStatusProcessing && job.Err != nil && job.ID != "" {
		b.WriteString(labelStyle.Render("polling stopped; run `casegen resume "+job.ID+"` to continue") + "\n")
	}
	if job.Result == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s\n", titleStyle.Render(fmt.Sprintf("%d test cases", len(job.Result.GeneratedTestCases))))
	for i, tc := range job.Result.GeneratedTestCases {
		b.WriteString(caseStyle.Width(width-2).Render(renderCase(i+1, tc)) + "\n")
	}

	if len(job.Result.SimilarExamples) > 0 {
		fmt.Fprintf(&b, "\n%s\n", titleStyle.Render("Similar examples"))
		for _, ex := range job.Result.SimilarExamples {
			fmt.Fprintf(&b, "• %s %s\n", ex.UserStory, labelStyle.Render(fmt.Sprintf("(%d cases)", len(ex.TestCases))))
		}
	}
	return b.String()
}

func renderCase(n int, tc models.TestCase) string {
	var b strings.Builder
	title := fmt.Sprintf("%d. %s", n, tc.Title)
	if tc.Priority != "" {
		style, ok := priorityStyle[tc.Priority]
		if !ok {
			style = labelStyle
		}
		title += "  " + style.Render(string(tc.Priority))
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	if tc.Category != "" {
		b.WriteString("  " + labelStyle.Render(tc.Category))
	}
	for i, step := range tc.Steps {
		fmt.Fprintf(&b, "\n  %d) %s", i+1, step)
	}
	if tc.ExpectedResult != "" {
		b.WriteString("\n" + labelStyle.Render("expected: ") + tc.ExpectedResult)
	}
	return b.String()
}
