package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single round trip to the generator.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a non-2xx body is kept on HTTPError.
	maxErrorBody = 4 << 10
)

var (
	// ErrMissingJobID is returned when /generate answers 2xx without an id.
	ErrMissingJobID = errors.New("job id not received from generator")

	// ErrJobNotFound is returned when /result/{id} answers 404.
	ErrJobNotFound = errors.New("job not found")
)

// HTTPError is a non-2xx answer from the generator.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client talks to the remote test case generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Options はクライアント作成オプション
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts *Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid generator base url: %q", baseURL)
	}

	hc := &http.Client{Timeout: DefaultTimeout}
	if opts != nil {
		if opts.HTTPClient != nil {
			hc = opts.HTTPClient
		} else if opts.Timeout > 0 {
			hc.Timeout = opts.Timeout
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate submits a user story and returns the job id assigned by the service.
func (c *Client) Generate(ctx context.Context, userStory string) (*GenerateResponse, error) {
	body, err := json.Marshal(GenerateRequest{UserStory: userStory})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/generate", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, ErrMissingJobID
	}
	return &resp, nil
}

// Result fetches the current status of a job.
func (c *Client) Result(ctx context.Context, jobID string) (*StatusResponse, error) {
	endpoint := c.baseURL + "/result/" + url.PathEscape(jobID)

	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, err
	}
	if !resp.Status.Valid() {
		return nil, fmt.Errorf("unexpected job status %q for %s", resp.Status, jobID)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &HTTPError{
			Method:     method,
			URL:        endpoint,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}
