package tui

import (
	"errors"
	"sync"
	"testing"

	"casegen/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	job      models.Job
	active   bool
	canceled int
}

func (f *fakeSource) Snapshot() models.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.job
}

func (f *fakeSource) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeSource) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.canceled++
}

func TestModel_QuitsWhenSessionEnds(t *testing.T) {
	src := &fakeSource{job: models.Job{ID: "job-1", Status: models.JobStatusProcessing}, active: true}
	m := NewModel(src)

	next, cmd := m.Update(snapshotMsg{job: src.job, active: true})
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.Contains(t, m.View(), "Generating test cases")
	assert.Contains(t, m.View(), "job-1")

	done := models.Job{
		ID:     "job-1",
		Status: models.JobStatusDone,
		Result: models.NewResult([]models.TestCase{{Title: "Valid login", Priority: models.PriorityHigh, Steps: []string{"open page"}}}, nil),
	}
	next, cmd = m.Update(snapshotMsg{job: done, active: false})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, m.Canceled())
	assert.Contains(t, m.View(), "Valid login")
	assert.Contains(t, m.View(), "1) open page")
	assert.Equal(t, 0, src.canceled)
}

func TestModel_QuitCancelsPolling(t *testing.T) {
	src := &fakeSource{job: models.Job{ID: "job-1", Status: models.JobStatusProcessing}, active: true}
	m := NewModel(src)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Canceled())
	assert.Equal(t, 1, src.canceled)
	assert.Equal(t, models.JobStatusProcessing, m.Job().Status)
}

func TestRender(t *testing.T) {
	out := Render(models.Job{
		ID:     "job-9",
		Status: models.JobStatusProcessing,
		Err:    errors.New("status check failed"),
	}, 60)
	assert.Contains(t, out, "status check failed")
	assert.Contains(t, out, "casegen resume job-9")

	out = Render(models.Job{
		ID:     "job-9",
		Status: models.JobStatusDone,
		Result: models.NewResult(nil, []models.SimilarExample{{UserStory: "Reset password", TestCases: []models.TestCase{{}}}}),
	}, 0)
	assert.Contains(t, out, "0 test cases")
	assert.Contains(t, out, "Reset password")
	assert.Contains(t, out, "(1 cases)")
}
