package matchctl

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

	service "github.com/okian/tapp/internal/app"
	"github.com/okian/tapp/internal/domain/model"
	"github.com/okian/tapp/pkg/logger"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status    int                    `json:"-"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Conflicts []service.ConflictItem `json:"conflicts,omitempty"`
	// Report is set when a finalize batch was confirmed in part.
	Report *service.FinalizeReport `json:"report,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the draft matching HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	verbose bool
	log     logger.Logger
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		verbose: cfg.Verbose,
		log:     logger.Named("matchctl"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if c.verbose {
		c.log.Info(ctx, "request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("took", time.Since(start).String()),
		)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Import uploads an import file.
func (c *Client) Import(ctx context.Context, file io.Reader) (service.ImportReport, error) {
	var report service.ImportReport
	resp, err := c.do(ctx, http.MethodPost, "/matches/import", nil, file)
	if err != nil {
		return report, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("decode import report: %w", err)
	}
	return report, nil
}

// Export downloads matches into w. Empty keys export everything.
func (c *Client) Export(ctx context.Context, w io.Writer, keys []string) error {
	var q url.Values
	if len(keys) > 0 {
		q = url.Values{"key": keys}
	}
	resp, err := c.do(ctx, http.MethodGet, "/matches/export", q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Drafts lists the staged drafts.
func (c *Client) Drafts(ctx context.Context) ([]model.MatchableAssignment, error) {
	var out struct {
		Matches []model.MatchableAssignment `json:"matches"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/matches", url.Values{"draft": {"true"}}, nil, &out)
	return out.Matches, err
}

// Finalize submits keys as one batch.
func (c *Client) Finalize(ctx context.Context, keys []string) (service.FinalizeReport, error) {
	var report service.FinalizeReport
	err := c.doJSON(ctx, http.MethodPost, "/finalize", nil, map[string][]string{"keys": keys}, &report)
	return report, err
}

// Sync asks the service to mirror persisted assignments.
func (c *Client) Sync(ctx context.Context) (int, error) {
	var out struct {
		Assignments int `json:"assignments"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/assignments/sync", nil, nil, &out)
	return out.Assignments, err
}

// Applicant is the row shape of the applicant view.
type Applicant struct {
	model.ApplicantSummary
	HoursAssigned     float64 `json:"hoursAssigned"`
	HoursOwed         float64 `json:"hoursOwed"`
	AssignedElsewhere bool    `json:"assignedElsewhere"`
	Preference        int     `json:"preference"`
}

// Applicants queries the applicant view of a position.
func (c *Client) Applicants(ctx context.Context, positionCode, search string, filters, sorts []string) ([]Applicant, error) {
	q := url.Values{}
	if search != "" {
		q.Set("q", search)
	}
	for _, f := range filters {
		q.Add("filter", f)
	}
	for _, s := range sorts {
		q.Add("sort", s)
	}
	var out struct {
		Applicants []Applicant `json:"applicants"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/positions/"+url.PathEscape(positionCode)+"/applicants", q, nil, &out)
	return out.Applicants, err
}

// Stats returns the service statistics.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.doJSON(ctx, http.MethodGet, "/stats", nil, nil, &out)
	return out, err
}
