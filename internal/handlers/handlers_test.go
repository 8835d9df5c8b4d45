package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"casegen/internal/genapi"
	"casegen/internal/ingestion"
	"casegen/internal/models"
	"casegen/internal/poller"
	"casegen/internal/storage"
	"casegen/internal/stubservice"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	e        *echo.Echo
	db       *storage.DB
	jobs     *storage.JobRepository
	sessions *storage.SessionRepository
	client   *genapi.Client
	poller   *poller.Poller
}

func newStubClient(t *testing.T) *genapi.Client {
	t.Helper()
	stub := echo.New()
	stubservice.New(2).Register(stub.Group(""))
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := genapi.NewClient(srv.URL, nil)
	require.NoError(t, err)
	return client
}

func newEnv(t *testing.T, client *genapi.Client, db *storage.DB) *testEnv {
	t.Helper()
	if db == nil {
		var err error
		db, err = storage.Open(filepath.Join(t.TempDir(), "casegen.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}

	env := &testEnv{
		e:        echo.New(),
		db:       db,
		jobs:     storage.NewJobRepository(db),
		sessions: storage.NewSessionRepository(db),
		client:   client,
	}
	env.poller = poller.New(client, env.sessions,
		poller.WithInterval(10*time.Millisecond),
		poller.WithRecorder(env.jobs))
	t.Cleanup(func() { env.poller.Close() })

	batches := storage.NewBatchRepository(db)
	Register(env.e, Set{
		Home:      NewHomeHandler(env.jobs),
		Generator: NewGeneratorHandler(env.poller),
		Jobs:      NewJobHandler(env.jobs),
		Batches:   NewBatchHandler(ingestion.NewIngester(batches), batches, 1<<20),
	})
	return env
}

func (env *testEnv) do(method, target string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) waitDone(t *testing.T) models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		job = env.poller.Snapshot()
		if !job.Status.Terminal() {
			return false
		}
		// the recorder runs right after the poller resolves
		stored, err := env.jobs.GetByID(context.Background(), job.ID)
		return err == nil && stored != nil && stored.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestHealth(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)
	rec := env.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGenerator_SubmitPollExport(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)

	rec := env.do(http.MethodPost, "/api/generator", `{"user_story":"As a user, I want to log in."}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var submitted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	id := submitted["id"]
	require.NotEmpty(t, id)

	stored, err := env.sessions.CurrentJobID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, stored)

	job := env.waitDone(t)
	assert.Equal(t, models.JobStatusDone, job.Status)

	rec = env.do(http.MethodGet, "/api/generator", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "done", snap.Status)
	assert.False(t, snap.Active)
	require.NotNil(t, snap.Job.Result)
	assert.Len(t, snap.Job.Result.GeneratedTestCases, 3)

	// The recorder has persisted the resolved job.
	rec = env.do(http.MethodGet, "/api/jobs/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"done"`)

	rec = env.do(http.MethodGet, "/api/jobs/"+id+"/export?format=csv", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), ".csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,title,steps"))

	rec = env.do(http.MethodGet, "/api/jobs/"+id+"/export?format=pdf", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/jobs/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalJobs)
	assert.Equal(t, int64(3), stats.TestCasesGenerated)
}

func TestGenerator_FormSubmitRedirects(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)

	form := url.Values{"user_story": {"As a user, I want a form."}}
	req := httptest.NewRequest(http.MethodPost, "/api/generator", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/generator", rec.Header().Get(echo.HeaderLocation))
	env.waitDone(t)
}

func (env *testEnv) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestGenerator_FormErrorsRenderPage(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)
	rec := env.postForm("/api/generator", url.Values{"user_story": {"  "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, echo.MIMETextHTMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), `<p class="error">user story is required</p>`)

	down := httptest.NewServer(http.NotFoundHandler())
	client, err := genapi.NewClient(down.URL, nil)
	require.NoError(t, err)
	down.Close()

	env = newEnv(t, client, nil)
	rec = env.postForm("/api/generator", url.Values{"user_story": {"As a user, I want a form."}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<!doctype html>")
	assert.Contains(t, body, "submission failed")
	assert.Contains(t, body, "As a user, I want a form.")
	assert.Equal(t, 1, strings.Count(body, `class="error"`))
}

func TestGenerator_FormResume(t *testing.T) {
	client := newStubClient(t)
	gen, err := client.Generate(context.Background(), "As a user, I want to resume.")
	require.NoError(t, err)

	env := newEnv(t, client, nil)
	rec := env.postForm("/api/generator/resume", url.Values{"id": {gen.ID}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	env.waitDone(t)

	rec = env.postForm("/api/generator/resume", url.Values{"id": {"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "job not found")
}

func TestGenerator_SubmitErrors(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)
	rec := env.do(http.MethodPost, "/api/generator", `{"user_story":"   "}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	down := httptest.NewServer(http.NotFoundHandler())
	client, err := genapi.NewClient(down.URL, nil)
	require.NoError(t, err)
	down.Close()

	env = newEnv(t, client, nil)
	rec = env.do(http.MethodPost, "/api/generator", `{"user_story":"story"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, models.JobStatusUnsubmitted, env.poller.Snapshot().Status)
}

func TestGenerator_ResumeErrors(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)

	rec := env.do(http.MethodPost, "/api/generator/resume", `{"id":""}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/generator/resume", `{"id":"missing"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id, err := env.sessions.CurrentJobID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestGenerator_ResumeByID(t *testing.T) {
	client := newStubClient(t)
	gen, err := client.Generate(context.Background(), "As an admin, I want reports.")
	require.NoError(t, err)

	env := newEnv(t, client, nil)
	rec := env.do(http.MethodPost, "/api/generator/resume", `{"id":"`+gen.ID+`"}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	job := env.waitDone(t)
	assert.Equal(t, gen.ID, job.ID)
	assert.Equal(t, models.JobStatusDone, job.Status)
}

func TestGenerator_CancelKeepsJob(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)
	rec := env.do(http.MethodPost, "/api/generator", `{"user_story":"story"}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(http.MethodDelete, "/api/generator/session", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.Active)
	assert.NotEmpty(t, snap.ID)
}

func TestGenerator_PageRejoinsRememberedJob(t *testing.T) {
	client := newStubClient(t)
	first := newEnv(t, client, nil)

	rec := first.do(http.MethodPost, "/api/generator", `{"user_story":"As a user, I come back later."}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusAccepted, rec.Code)
	first.poller.Cancel()

	// A new poller sharing the same store stands in for the reopened page.
	second := newEnv(t, client, first.db)
	rec = second.do(http.MethodGet, "/generator", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<textarea")

	job := second.waitDone(t)
	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.Equal(t, first.poller.Snapshot().ID, job.ID)
}

func TestJobs_NotFoundAndDelete(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)
	ctx := context.Background()

	rec := env.do(http.MethodGet, "/api/jobs/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	now := time.Now()
	require.NoError(t, env.jobs.JobSubmitted(ctx, models.Job{ID: "p1", Input: "s", Status: models.JobStatusProcessing, SubmittedAt: &now}))

	rec = env.do(http.MethodGet, "/api/jobs/p1/export", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/jobs?status=processing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"p1"`)

	rec = env.do(http.MethodDelete, "/api/jobs/p1", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodDelete, "/api/jobs/p1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestBatches_UploadAndGet(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)

	body, ct := multipartBody(t, map[string]string{
		"stories.txt": "As a user I log in\nAs a user I log out\n",
		"more.csv":    "user_story\nAs an admin I export data\n",
	})
	rec := env.do(http.MethodPost, "/api/batches", body.String(), ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var batch models.Batch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.NotEmpty(t, batch.ID)
	assert.Len(t, batch.Files, 2)

	rec = env.do(http.MethodGet, "/api/batches/"+batch.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stories.txt")

	rec = env.do(http.MethodGet, "/api/batches", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), batch.ID)

	rec = env.do(http.MethodGet, "/api/batches/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatches_UploadRejects(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)

	body, ct := multipartBody(t, map[string]string{"deck.pptx": "x"})
	rec := env.do(http.MethodPost, "/api/batches", body.String(), ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, map[string]string{"empty.txt": "\n\n"})
	rec = env.do(http.MethodPost, "/api/batches", body.String(), ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, map[string]string{})
	rec = env.do(http.MethodPost, "/api/batches", body.String(), ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, map[string]string{"big.txt": strings.Repeat("As a user I upload too much\n", 50_000)})
	rec = env.do(http.MethodPost, "/api/batches", body.String(), ct)
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
}

func TestBatches_FormUploadErrorRendersPage(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)

	body, ct := multipartBody(t, map[string]string{"deck.pptx": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/batches", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bulk upload")
	assert.Contains(t, rec.Body.String(), "unsupported file type: deck.pptx")
}

func TestPages(t *testing.T) {
	env := newEnv(t, newStubClient(t), nil)
	for _, path := range []string{"/", "/generator", "/upload", "/jobs", "/about"} {
		rec := env.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "<!doctype html>", path)
		assert.Equal(t, echo.MIMETextHTMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType), path)
	}
}
