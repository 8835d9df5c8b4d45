// Package stubservice is a local stand-in for the remote test case generator.
// It speaks the same /generate and /result/{id} protocol and answers with
// canned test cases after a fixed number of status checks.
package stubservice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"casegen/internal/genapi"
	"casegen/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DefaultPollsUntilDone is how many status checks report processing before a job resolves.
const DefaultPollsUntilDone = 2

type stubJob struct {
	story string
	polls int
}

// Service はスタブ生成サービス
type Service struct {
	pollsUntilDone int

	mu   sync.Mutex
	jobs map[string]*stubJob
}

// New creates a stub service. pollsUntilDone <= 0 selects DefaultPollsUntilDone.
func New(pollsUntilDone int) *Service {
	if pollsUntilDone <= 0 {
		pollsUntilDone = DefaultPollsUntilDone
	}
	return &Service{
		pollsUntilDone: pollsUntilDone,
		jobs:           make(map[string]*stubJob),
	}
}

// Register mounts the generator routes on g.
func (s *Service) Register(g *echo.Group) {
	g.POST("/generate", s.Generate)
	g.GET("/result/:id", s.Result)
}

// Generate accepts a user story and returns a fresh job id
func (s *Service) Generate(c echo.Context) error {
	var req genapi.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.UserStory) == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "inp_user_story is required"})
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.jobs[id] = &stubJob{story: req.UserStory}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, genapi.GenerateResponse{ID: id, Message: "Test case generation started"})
}

// Result reports the job status
func (s *Service) Result(c echo.Context) error {
	id := c.Param("id")

	s.mu.Lock()
	job, ok := s.jobs[id]
	var polls int
	if ok {
		job.polls++
		polls = job.polls
	}
	s.mu.Unlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	if polls < s.pollsUntilDone {
		return c.JSON(http.StatusOK, genapi.StatusResponse{ID: id, Status: genapi.StatusProcessing})
	}

	if strings.Contains(strings.ToLower(job.story), "fail") {
		payload, _ := json.Marshal(map[string]string{"error": "generation failed for this story"})
		return c.JSON(http.StatusOK, genapi.StatusResponse{ID: id, Status: genapi.StatusFailed, Result: payload})
	}

	payload, err := json.Marshal([]any{cannedCases(job.story), cannedExamples()})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, genapi.StatusResponse{ID: id, Status: genapi.StatusDone, Result: payload})
}

func cannedCases(story string) []models.TestCase {
	subject := strings.TrimSpace(story)
	if len(subject) > 60 {
		subject = subject[:60] + "..."
	}
	return []models.TestCase{
		{
			ID:             "TC-001",
			Title:          fmt.Sprintf("Happy path: %s", subject),
			Steps:          []string{"Prepare valid preconditions", "Perform the described action", "Observe the outcome"},
			ExpectedResult: "The user achieves the goal described in the story",
			Priority:       models.PriorityHigh,
			Category:       "Functional",
		},
		{
			ID:             "TC-002",
			Title:          "Invalid input is rejected",
			Steps:          []string{"Prepare invalid input", "Perform the described action"},
			ExpectedResult: "A validation message is shown and nothing is saved",
			Priority:       models.PriorityMedium,
			Category:       "Validation",
		},
		{
			ID:             "TC-003",
			Title:          "Unauthorized user cannot perform the action",
			Steps:          []string{"Sign out", "Attempt the described action"},
			ExpectedResult: "Access is denied",
			Priority:       models.PriorityLow,
			Category:       "Security",
		},
	}
}

func cannedExamples() []models.SimilarExample {
	return []models.SimilarExample{
		{
			UserStory: "As a user, I want to reset my password so that I can regain access.",
			TestCases: []models.TestCase{
				{ID: "EX-1", Title: "Reset link is emailed", Priority: models.PriorityHigh, Category: "Functional"},
			},
		},
	}
}
