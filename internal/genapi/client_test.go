package genapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"casegen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "not a url", "http://"} {
		_, err := NewClient(raw, nil)
		assert.Error(t, err, raw)
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "As a user, I want to log in.", req.UserStory)

		_, _ = w.Write([]byte(`{"id":"job-1","message":"queued"}`))
	})

	resp, err := c.Generate(context.Background(), "As a user, I want to log in.")
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, "queued", resp.Message)
}

func TestGenerate_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	_, err := c.Generate(context.Background(), "story")
	assert.ErrorIs(t, err, ErrMissingJobID)
}

func TestGenerate_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"model loading"}`))
	})

	_, err := c.Generate(context.Background(), "story")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "model loading")
}

func TestResult_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.Result(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestResult_UnknownStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"job-1","status":"queued"}`))
	})

	_, err := c.Result(context.Background(), "job-1")
	assert.Error(t, err)
}

func TestResult_EscapesID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/result/a%2Fb", r.URL.RawPath)
		_, _ = w.Write([]byte(`{"id":"a/b","status":"processing"}`))
	})

	resp, err := c.Result(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, resp.Status)
}

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantCases    int
		wantExamples int
		wantErr      bool
	}{
		{name: "absent", raw: ``},
		{name: "null", raw: `null`},
		{name: "empty pair", raw: `[]`},
		{name: "only cases", raw: `[[{"id":"tc1","title":"Login","steps":["open"],"expectedResult":"ok","priority":"high","category":"auth"}]]`, wantCases: 1},
		{name: "null cases", raw: `[null,[{"user_story":"old","test_cases":null}]]`, wantExamples: 1},
		{name: "both", raw: `[[{"id":"tc1"},{"id":"tc2"}],[{"user_story":"old","test_cases":[{"id":"x"}]}]]`, wantCases: 2, wantExamples: 1},
		{name: "error object", raw: `{"error":"boom"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &StatusResponse{Status: StatusDone, Result: json.RawMessage(tt.raw)}
			result, err := resp.DecodeResult()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result.GeneratedTestCases)
			require.NotNil(t, result.SimilarExamples)
			assert.Len(t, result.GeneratedTestCases, tt.wantCases)
			assert.Len(t, result.SimilarExamples, tt.wantExamples)
			for _, ex := range result.SimilarExamples {
				assert.NotNil(t, ex.TestCases)
			}
		})
	}
}

func TestDecodeResult_NormalizesPriority(t *testing.T) {
	resp := &StatusResponse{Result: json.RawMessage(`[[{"id":"tc1","priority":"critical"}],[]]`)}
	result, err := resp.DecodeResult()
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, result.GeneratedTestCases[0].Priority)
}

func TestDecodeResult_SimilarExampleStringCases(t *testing.T) {
	resp := &StatusResponse{Status: StatusDone, Result: json.RawMessage(
		`[[{"id":"tc1","title":"Login"}],[{"user_story":"As a user...","test_cases":["Verify login works","Verify logout"]}]]`)}

	result, err := resp.DecodeResult()
	require.NoError(t, err)
	require.Len(t, result.SimilarExamples, 1)

	ex := result.SimilarExamples[0]
	assert.Equal(t, "As a user...", ex.UserStory)
	assert.Equal(t, []models.TestCase{
		{ID: "0", Title: "Test Case 1", ExpectedResult: "Verify login works"},
		{ID: "1", Title: "Test Case 2", ExpectedResult: "Verify logout"},
	}, ex.TestCases)
}

func TestDecodeResult_SimilarExampleMixedCases(t *testing.T) {
	resp := &StatusResponse{Status: StatusDone, Result: json.RawMessage(
		`[[],[{"user_story":"old","test_cases":[{"id":"x","title":"Object"},"plain text"]}]]`)}

	result, err := resp.DecodeResult()
	require.NoError(t, err)

	cases := result.SimilarExamples[0].TestCases
	require.Len(t, cases, 2)
	assert.Equal(t, "Object", cases[0].Title)
	assert.Equal(t, "Test Case 2", cases[1].Title)
	assert.Equal(t, "plain text", cases[1].ExpectedResult)
}
