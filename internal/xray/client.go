// Package xray implements the Xray Cloud REST client used to push drafts as
// Xray tests. The client is a plain sequence of authenticated calls: no
// retry, no backpressure. Transport failures surface as errors; an import
// the API itself rejects surfaces as an unsuccessful ImportResult.
package xray

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// DefaultBaseURL is the Xray Cloud API root.
const DefaultBaseURL = "https://xray.cloud.getxray.app"

// tokenTTL is how long a bearer token is reused before re-authenticating.
// Xray Cloud tokens last 24h; a shorter reuse window keeps clock skew and
// revocation out of the picture.
const tokenTTL = 30 * time.Minute

// ErrNotConfigured reports a missing or incomplete credentials document.
var ErrNotConfigured = errors.New("xray credentials are not configured")

// Config is the credentials document stored at config/xray-config.json.
type Config struct {
	BaseURL      string `json:"baseUrl,omitempty"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// LoadConfig reads the credentials document. A missing file yields
// ErrNotConfigured rather than an I/O error so callers can map it to a
// friendly response.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, ErrNotConfigured
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading xray config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing xray config: %w", err)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return Config{}, ErrNotConfigured
	}
	return cfg, nil
}

// Compile-time interface check: Client must implement types.Importer.
var _ types.Importer = (*Client)(nil)

// Client talks to one Xray Cloud instance.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
	log     *slog.Logger

	// pollInterval is how often a bulk import job is polled. Tests shrink it.
	pollInterval time.Duration

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates a client for the given credentials. A nil httpClient
// gets a 30-second timeout default; a nil logger falls back to slog.Default.
func NewClient(cfg Config, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(base, "/"),
		cfg:          cfg,
		http:         httpClient,
		log:          log,
		pollInterval: time.Second,
	}
}

// Authenticate obtains (or reuses) a bearer token via POST
// /api/v2/authenticate. The endpoint returns the token as a JSON string.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("xray: marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/authenticate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("xray: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("xray: authenticate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("xray: authenticate: unexpected status %d", resp.StatusCode)
	}

	var token string
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("xray: decode token: %w", err)
	}

	c.token = token
	c.tokenExp = time.Now().Add(tokenTTL)
	return token, nil
}

// importTest is one entry of the bulk import payload.
type importTest struct {
	TestType string       `json:"testtype"`
	Fields   importFields `json:"fields"`
	Steps    []importStep `json:"steps,omitempty"`
}

type importFields struct {
	Summary string        `json:"summary"`
	Project importProject `json:"project"`
}

type importProject struct {
	Key string `json:"key"`
}

type importStep struct {
	Action string `json:"action"`
	Data   string `json:"data,omitempty"`
	Result string `json:"result"`
}

// jobResponse is returned by POST /api/v2/import/test/bulk.
type jobResponse struct {
	JobID string `json:"jobId"`
}

// jobStatus is returned by GET /api/v2/import/test/bulk/{jobId}/status.
type jobStatus struct {
	Status string `json:"status"`
	Result struct {
		Issues []struct {
			ID  string `json:"id"`
			Key string `json:"key"`
		} `json:"issues"`
		Errors []json.RawMessage `json:"errors"`
	} `json:"result"`
}

// ImportTests pushes the drafts as manual Xray tests under projectKey using
// the bulk import endpoint, then polls the job until it settles. Assigned
// keys and issue ids come back in draft order.
func (c *Client) ImportTests(ctx context.Context, drafts []*types.Draft, projectKey string) (*types.ImportResult, error) {
	if len(drafts) == 0 {
		return &types.ImportResult{Success: false, Error: "no drafts to import"}, nil
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	payload := make([]importTest, 0, len(drafts))
	for _, d := range drafts {
		t := importTest{
			TestType: "Manual",
			Fields: importFields{
				Summary: d.Summary,
				Project: importProject{Key: projectKey},
			},
		}
		for _, s := range d.Steps {
			t.Steps = append(t.Steps, importStep{Action: s.Action, Data: s.Data, Result: s.Result})
		}
		payload = append(payload, t)
	}

	job, err := c.startBulkImport(ctx, token, payload)
	if err != nil {
		return nil, err
	}
	c.log.Info("xray bulk import started", "jobId", job, "drafts", len(drafts))

	return c.pollBulkImport(ctx, token, job)
}

// startBulkImport submits the payload and returns the job id.
func (c *Client) startBulkImport(ctx context.Context, token string, payload []importTest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("xray: marshal import payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/import/test/bulk", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("xray: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("xray: bulk import: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("xray: bulk import: unexpected status %d", resp.StatusCode)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("xray: decode job response: %w", err)
	}
	if job.JobID == "" {
		return "", errors.New("xray: bulk import returned no job id")
	}
	return job.JobID, nil
}

// pollBulkImport polls the job status until it settles or ctx expires.
func (c *Client) pollBulkImport(ctx context.Context, token, jobID string) (*types.ImportResult, error) {
	url := fmt.Sprintf("%s/api/v2/import/test/bulk/%s/status", c.baseURL, jobID)

	for {
		status, err := c.fetchJobStatus(ctx, token, url)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "successful":
			res := &types.ImportResult{Success: true}
			for _, issue := range status.Result.Issues {
				res.TestKeys = append(res.TestKeys, issue.Key)
				res.TestIssueIDs = append(res.TestIssueIDs, issue.ID)
			}
			return res, nil
		case "failed", "unsuccessful":
			return &types.ImportResult{
				Success: false,
				Error:   fmt.Sprintf("bulk import job %s ended with status %q", jobID, status.Status),
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("xray: waiting for job %s: %w", jobID, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// fetchJobStatus performs one status poll.
func (c *Client) fetchJobStatus(ctx context.Context, token, url string) (*jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("xray: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xray: job status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xray: job status: unexpected status %d", resp.StatusCode)
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("xray: decode job status: %w", err)
	}
	return &status, nil
}
