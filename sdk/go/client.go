package wardlinesdk

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
)

// Client is a minimal Wardline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Calling represents the API calling model.
type Calling struct {
	ID           string  `json:"id"`
	WorkspaceID  string  `json:"workspace_id"`
	Title        string  `json:"title"`
	Organization *string `json:"organization,omitempty"`
	IsFilled     bool    `json:"is_filled"`
	FilledBy     *string `json:"filled_by,omitempty"`
	FilledAt     *string `json:"filled_at,omitempty"`
}

// Candidate represents a pool entry.
type Candidate struct {
	ID            string  `json:"id"`
	CallingID     string  `json:"calling_id"`
	CandidateName string  `json:"candidate_name"`
	Status        string  `json:"status"`
	Notes         *string `json:"notes,omitempty"`
	DeletedAt     *string `json:"deleted_at,omitempty"`
}

// Process represents a calling process.
type Process struct {
	ID            string  `json:"id"`
	CallingID     string  `json:"calling_id"`
	CandidateID   *string `json:"candidate_id,omitempty"`
	CandidateName string  `json:"candidate_name,omitempty"`
	CurrentStage  string  `json:"current_stage"`
	StageLabel    string  `json:"stage_label"`
	Status        string  `json:"status"`
	DroppedReason *string `json:"dropped_reason,omitempty"`
}

// TimelineItem is one entry in a process timeline (partial).
type TimelineItem struct {
	Type      string         `json:"type"`
	CreatedAt string         `json:"created_at"`
	History   map[string]any `json:"history,omitempty"`
	Comment   map[string]any `json:"comment,omitempty"`
	Task      map[string]any `json:"task,omitempty"`
}

// Timeline wraps the merged feed for a process.
type Timeline struct {
	ProcessID string         `json:"process_id"`
	Items     []TimelineItem `json:"items"`
}

// SearchResult is a candidate-name search response.
type SearchResult struct {
	Names []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"names"`
	ExactMatch bool `json:"exact_match"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedCallings wraps list responses with cursors.
type PaginatedCallings struct {
	Items      []Calling `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedProcesses wraps process listings.
type PaginatedProcesses struct {
	Items      []Process `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// CreateCalling creates a calling.
func (c *Client) CreateCalling(ctx context.Context, title, organization string) (Calling, error) {
	body := map[string]any{"title": title}
	if organization != "" {
		body["organization"] = organization
	}
	var resp Calling
	err := c.do(ctx, http.MethodPost, c.apiPath("callings"), body, &resp)
	return resp, err
}

// Callings returns a paginated calling listing.
func (c *Client) Callings(ctx context.Context, limit int, cursor string) (PaginatedCallings, error) {
	var resp PaginatedCallings
	err := c.do(ctx, http.MethodGet, c.listPath("callings", limit, cursor), nil, &resp)
	return resp, err
}

// AddCandidate adds a name to a calling's pool.
func (c *Client) AddCandidate(ctx context.Context, callingID, name, notes string) (Candidate, error) {
	body := map[string]any{"name": name}
	if notes != "" {
		body["notes"] = notes
	}
	var resp Candidate
	endpoint := c.apiPath(fmt.Sprintf("callings/%s/candidates", url.PathEscape(callingID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Candidates lists a calling's pool.
func (c *Client) Candidates(ctx context.Context, callingID string) ([]Candidate, error) {
	var resp []Candidate
	endpoint := c.apiPath(fmt.Sprintf("callings/%s/candidates", url.PathEscape(callingID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SearchNames searches known candidate names.
func (c *Client) SearchNames(ctx context.Context, query string) (SearchResult, error) {
	var resp SearchResult
	endpoint := c.apiPath("candidate-names/search") + "?q=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StartProcess opens a process for a pool entry.
func (c *Client) StartProcess(ctx context.Context, callingID, candidateID string) (Process, error) {
	body := map[string]any{"candidate_id": candidateID}
	var resp Process
	endpoint := c.apiPath(fmt.Sprintf("callings/%s/process", url.PathEscape(callingID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AdvanceStage moves a process forward. Pass confirm for the final stage.
func (c *Client) AdvanceStage(ctx context.Context, processID, toStage string, confirm bool) (Process, error) {
	body := map[string]any{"confirm": confirm}
	if toStage != "" {
		body["to_stage"] = toStage
	}
	var resp Process
	endpoint := c.apiPath(fmt.Sprintf("processes/%s/advance", url.PathEscape(processID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// DropProcess abandons an active process.
func (c *Client) DropProcess(ctx context.Context, processID, reason string) (Process, error) {
	body := map[string]any{"reason": reason}
	var resp Process
	endpoint := c.apiPath(fmt.Sprintf("processes/%s/drop", url.PathEscape(processID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Processes returns a paginated process listing.
func (c *Client) Processes(ctx context.Context, limit int, cursor string) (PaginatedProcesses, error) {
	var resp PaginatedProcesses
	err := c.do(ctx, http.MethodGet, c.listPath("processes", limit, cursor), nil, &resp)
	return resp, err
}

// ProcessTimeline fetches the merged timeline for a process.
func (c *Client) ProcessTimeline(ctx context.Context, processID string) (Timeline, error) {
	var resp Timeline
	endpoint := c.apiPath(fmt.Sprintf("processes/%s/timeline", url.PathEscape(processID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AddComment posts a comment on a process.
func (c *Client) AddComment(ctx context.Context, processID, content string) error {
	body := map[string]any{"content": content}
	endpoint := c.apiPath(fmt.Sprintf("processes/%s/comments", url.PathEscape(processID)))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// Dashboard fetches the workspace dashboard summary.
func (c *Client) Dashboard(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, c.apiPath("dashboard"), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) apiPath(p string) string {
	return "v1/" + strings.TrimLeft(p, "/")
}

func (c *Client) listPath(resource string, limit int, cursor string) string {
	endpoint := c.apiPath(resource)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	return endpoint
}
