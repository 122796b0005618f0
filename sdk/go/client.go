package homelinesdk

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

// Client is a minimal Homeline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// MemberID is sent as X-Member-ID when no bearer token is set. Only works
	// against servers started with header auth enabled.
	MemberID   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Lead represents the API lead model (partial).
type Lead struct {
	ID         string  `json:"id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Phone      string  `json:"phone"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	DueDate    string `json:"due_date"`
	AssignedTo string `json:"assigned_to"`
}

// Notification represents an inbox entry.
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// Event represents a change feed entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// ImportRowError describes one rejected import row.
type ImportRowError struct {
	Row   int    `json:"row"`
	Raw   string `json:"raw,omitempty"`
	Error string `json:"error"`
}

// ImportReport summarizes a CSV bulk import.
type ImportReport struct {
	Success  int              `json:"success"`
	Failed   int              `json:"failed"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportRowError `json:"errors"`
	Imported []string         `json:"imported"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateLead creates a lead with the minimum required fields.
func (c *Client) CreateLead(ctx context.Context, firstName, phone string) (Lead, error) {
	body := map[string]any{
		"first_name": firstName,
		"phone":      phone,
	}
	var resp Lead
	err := c.do(ctx, http.MethodPost, "v0/leads", body, &resp)
	return resp, err
}

// TransitionLead moves a lead to a new status.
func (c *Client) TransitionLead(ctx context.Context, leadID, status string) (Lead, error) {
	var resp Lead
	endpoint := fmt.Sprintf("v0/leads/%s/status", url.PathEscape(leadID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// AssignLead hands a lead to a member.
func (c *Client) AssignLead(ctx context.Context, leadID, memberID string) (Lead, error) {
	var resp Lead
	endpoint := fmt.Sprintf("v0/leads/%s/assign", url.PathEscape(leadID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"member_id": memberID}, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, dueDate, assignedTo string) (Task, error) {
	body := map[string]any{
		"title":       title,
		"due_date":    dueDate,
		"assigned_to": assignedTo,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// CompleteTask completes a task.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/complete", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ImportLeads uploads a raw CSV payload and returns the per-row report.
// duplicatePolicy is one of skip, update, error; empty uses the server default.
func (c *Client) ImportLeads(ctx context.Context, csvData []byte, duplicatePolicy string) (ImportReport, error) {
	var report ImportReport
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v0/leads/import"
	if duplicatePolicy != "" {
		endpoint += "?duplicate_policy=" + url.QueryEscape(duplicatePolicy)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(csvData))
	if err != nil {
		return report, err
	}
	req.Header.Set("Content-Type", "text/csv")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.MemberID != "":
		req.Header.Set("X-Member-ID", c.MemberID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return report, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return report, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return report, json.NewDecoder(resp.Body).Decode(&report)
}

// Notifications returns the caller's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	var resp struct {
		Notifications []Notification `json:"notifications"`
	}
	endpoint := "v0/notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Notifications, err
}

// Events reads the change feed from a cursor.
func (c *Client) Events(ctx context.Context, after string, limit int) ([]Event, string, error) {
	var resp struct {
		Events []Event `json:"events"`
		Next   string  `json:"next"`
	}
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if after != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%safter=%s", endpoint, sep, url.QueryEscape(after))
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, resp.Next, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
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
	case c.MemberID != "":
		req.Header.Set("X-Member-ID", c.MemberID)
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
