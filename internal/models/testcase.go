package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Priority はテストケースの優先度
type Priority string

// 優先度
const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// ParsePriority normalizes the spellings the generator emits ("high", "HIGH", "High").
// Unknown values are kept as-is so nothing from the remote payload is lost.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	case "low":
		return PriorityLow
	default:
		return Priority(s)
	}
}

// UnmarshalJSON accepts any casing.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePriority(s)
	return nil
}

// TestCase は生成されたテストケース
type TestCase struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Steps          []string `json:"steps" yaml:"steps"`
	ExpectedResult string   `json:"expectedResult" yaml:"expected_result"`
	Priority       Priority `json:"priority" yaml:"priority"`
	Category       string   `json:"category" yaml:"category"`
}

// SimilarExample は過去のユーザーストーリーとそのテストケース
type SimilarExample struct {
	UserStory string     `json:"user_story" yaml:"user_story"`
	TestCases []TestCase `json:"test_cases" yaml:"test_cases"`
}

// UnmarshalJSON accepts test_cases entries either as TestCase objects or as
// bare strings. A string entry at index i becomes
// {ID: "i", Title: "Test Case i+1", ExpectedResult: text}.
func (e *SimilarExample) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserStory string            `json:"user_story"`
		TestCases []json.RawMessage `json:"test_cases"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cases := make([]TestCase, 0, len(raw.TestCases))
	for i, item := range raw.TestCases {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				return fmt.Errorf("test_cases[%d]: %w", i, err)
			}
			cases = append(cases, TestCase{
				ID:             strconv.Itoa(i),
				Title:          fmt.Sprintf("Test Case %d", i+1),
				ExpectedResult: text,
			})
			continue
		}

		var tc TestCase
		if err := json.Unmarshal(item, &tc); err != nil {
			return fmt.Errorf("test_cases[%d]: %w", i, err)
		}
		cases = append(cases, tc)
	}

	e.UserStory = raw.UserStory
	e.TestCases = cases
	return nil
}
