package ce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/otavio/vigia/internal/component"
)

// APIError is a non-2xx response from the vigia HTTP API.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("api error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: HTTP %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// ErrorBody is the JSON error envelope written by the API.
type ErrorBody struct {
	Errors []ErrorMsg `json:"errors"`
}

// ErrorMsg is a single API error message.
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// Client talks to a vigia server. It implements TaskService.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// TasksForComponent fetches the queue snapshot of a component.
func (c *Client) TasksForComponent(ctx context.Context, componentKey string) (*Queue, error) {
	var q Queue
	if err := c.do(ctx, http.MethodGet, "/api/ce/component", url.Values{"component": {componentKey}}, &q); err != nil {
		return nil, fmt.Errorf("fetching tasks for %s: %w", componentKey, err)
	}
	return &q, nil
}

// Submit enqueues an analysis for a component.
func (c *Client) Submit(ctx context.Context, componentKey, branch string) (*Task, error) {
	params := url.Values{"component": {componentKey}}
	if branch != "" {
		params.Set("branch", branch)
	}
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ce/submit", params, &out); err != nil {
		return nil, fmt.Errorf("submitting %s: %w", componentKey, err)
	}
	return &out.Task, nil
}

// Cancel cancels a pending task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/ce/cancel", url.Values{"id": {taskID}}, nil); err != nil {
		return fmt.Errorf("canceling %s: %w", taskID, err)
	}
	return nil
}

// ShowComponent fetches a component with its breadcrumbs.
func (c *Client) ShowComponent(ctx context.Context, key string) (*component.Component, error) {
	var out struct {
		Component component.Component `json:"component"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/components/show", url.Values{"component": {key}}, &out); err != nil {
		return nil, fmt.Errorf("showing component %s: %w", key, err)
	}
	return &out.Component, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body ErrorBody
	if json.Unmarshal(data, &body) == nil {
		for _, e := range body.Errors {
			apiErr.Messages = append(apiErr.Messages, e.Msg)
		}
	}
	return apiErr
}
