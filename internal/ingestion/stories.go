package ingestion

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFileType is returned for uploads that are not .txt, .csv or .xlsx.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// SupportedExtensions lists the upload formats, in the order shown to users.
var SupportedExtensions = []string{".txt", ".csv", ".xlsx"}

// storyHeaders are the column names recognised as "the user story column".
var storyHeaders = map[string]bool{
	"user_story": true,
	"user story": true,
	"userstory":  true,
	"story":      true,
}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// IsSupported reports whether name has an accepted extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ParseStories extracts user stories from an uploaded file.
//
// Text files hold one story per paragraph when paragraphs are separated by
// blank lines, otherwise one story per line. CSV and XLSX files use the
// column titled like "user_story" when there is one, otherwise the first
// column, with every row being a story.
func ParseStories(name string, r io.Reader) ([]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return parseText(r)
	case ".csv":
		return parseCSV(r)
	case ".xlsx":
		return parseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, name)
	}
}

func parseText(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\uFEFF")

	var chunks []string
	if blankLine.MatchString(text) {
		chunks = blankLine.Split(text, -1)
	} else {
		chunks = strings.Split(text, "\n")
	}
	return compact(chunks), nil
}

func parseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv file: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\uFEFF")
	}
	return storiesFromRows(rows), nil
}

func parseXLSX(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return storiesFromRows(rows), nil
}

// storiesFromRows picks the story column out of tabular data.
func storiesFromRows(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	col := 0
	start := 0
	for i, cell := range rows[0] {
		if storyHeaders[strings.ToLower(strings.TrimSpace(cell))] {
			col = i
			start = 1
			break
		}
	}

	var cells []string
	for _, row := range rows[start:] {
		if col < len(row) {
			cells = append(cells, row[col])
		}
	}
	return compact(cells)
}

func compact(chunks []string) []string {
	stories := []string{}
	for _, c := range chunks {
		if s := strings.TrimSpace(c); s != "" {
			stories = append(stories, s)
		}
	}
	return stories
}
