// Package videogen is a thin client for an asynchronous video generation
// deployment. Jobs are created, polled, and their finished generations
// downloaded as MP4 bytes.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medialab/api/internal/config"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusRunning    = "running"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

type Generation struct {
	ID string `json:"id"`
}

type Job struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Prompt        string       `json:"prompt"`
	NSeconds      int          `json:"n_seconds"`
	Height        int          `json:"height"`
	Width         int          `json:"width"`
	NVariants     int          `json:"n_variants"`
	Generations   []Generation `json:"generations"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type JobList struct {
	Data []Job `json:"data"`
}

type Client struct {
	cfg          config.ProviderConfig
	pollInterval time.Duration
	maxPolls     int
	http         *http.Client
	log          zerolog.Logger
}

func NewClient(cfg config.ProviderConfig, pollInterval time.Duration, maxPolls int, log zerolog.Logger) *Client {
	return &Client{
		cfg:          cfg,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		http:         &http.Client{Timeout: 120 * time.Second},
		log:          log,
	}
}

func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

type CreateJobRequest struct {
	Prompt    string `json:"prompt"`
	NSeconds  int    `json:"n_seconds"`
	Height    int    `json:"height"`
	Width     int    `json:"width"`
	NVariants int    `json:"n_variants,omitempty"`
}

func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("video generation provider not configured")
	}

	payload := map[string]any{
		"model":      c.cfg.Deployment,
		"prompt":     req.Prompt,
		"n_seconds":  req.NSeconds,
		"height":     req.Height,
		"width":      req.Width,
		"n_variants": max(req.NVariants, 1),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var job Job
	if err := c.do(ctx, http.MethodPost, c.url("/generations/jobs", nil), bytes.NewReader(body), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, c.url("/generations/jobs/"+jobID, nil), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, c.url("/generations/jobs/"+jobID, nil), nil, nil)
}

func (c *Client) ListJobs(ctx context.Context, limit int, statuses []string) (*JobList, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(statuses) > 0 {
		params.Set("statuses", strings.Join(statuses, ","))
	}

	var list JobList
	if err := c.do(ctx, http.MethodGet, c.url("/generations/jobs", params), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DownloadVideo fetches the finished MP4 bytes of one generation.
func (c *Client) DownloadVideo(ctx context.Context, generationID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.url("/generations/"+generationID+"/content/video", nil), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("video download returned %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

// WaitForCompletion polls a job until it reaches a terminal state or the
// poll budget runs out. This is the only place in the system with a hard
// timeout on waiting.
func (c *Client) WaitForCompletion(ctx context.Context, jobID string) (*Job, error) {
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Terminal() {
			return job, nil
		}

		c.log.Debug().Str("job", jobID).Str("status", job.Status).Int("attempt", attempt).
			Msg("video job still running")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("video job %s did not finish within %d polls", jobID, c.maxPolls)
}

func (c *Client) url(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-version", c.cfg.APIVersion)
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + path + "?" + params.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	if !c.Configured() {
		return fmt.Errorf("video generation provider not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("video generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("video generation returned %d: %s", resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
