package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/errors"
	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/infrastructure/tracing"
)

// Config holds HTTP client settings for the task backend.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client handles HTTP communication with the task backend's REST API.
// It is the pull path: the push path (SSE) never goes through here.
type Client struct {
	httpClient *http.Client
	config     Config
	tracer     *tracing.Tracer
}

// NewClient creates a new task API client.
func NewClient(config Config, tracer *tracing.Tracer) *Client {
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
		tracer: tracer,
	}
}

// List fetches one page of tasks for the query.
func (c *Client) List(ctx context.Context, query task.Query) (task.Page, error) {
	query = query.Normalize()

	params := url.Values{}
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("size", strconv.Itoa(query.Size))
	params.Set("order_by", query.OrderBy)
	params.Set("order_direction", query.OrderDirection)
	if query.Status != "" {
		params.Set("status", string(query.Status))
	}
	if query.TitleContains != "" {
		params.Set("title_contains", query.TitleContains)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, "/api/v1/tasks?"+params.Encode(), nil)
	if err != nil {
		return task.Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return task.Page{}, c.handleErrorResponse(resp)
	}

	var page task.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return task.Page{}, errors.NewError(errors.CodeDecode, "failed to decode task list", err)
	}
	return page, nil
}

// Counts fetches the per-status aggregate counts.
func (c *Client) Counts(ctx context.Context) (task.StatusCounts, error) {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, "/api/v1/tasks/counts", nil)
	if err != nil {
		return task.StatusCounts{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return task.StatusCounts{}, c.handleErrorResponse(resp)
	}

	var counts task.StatusCounts
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		return task.StatusCounts{}, errors.NewError(errors.CodeDecode, "failed to decode task counts", err)
	}
	return counts, nil
}

// Get fetches a single task by ID.
func (c *Client) Get(ctx context.Context, id int) (task.Task, error) {
	if id <= 0 {
		return task.Task{}, errors.ErrTaskIDRequired
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", id), nil)
	if err != nil {
		return task.Task{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return task.Task{}, c.handleErrorResponse(resp)
	}

	return decodeTask(resp.Body)
}

// Create creates a task and returns the server's version of it.
func (c *Client) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	if err := draft.Validate(); err != nil {
		return task.Task{}, err
	}

	body, err := json.Marshal(draft)
	if err != nil {
		return task.Task{}, errors.NewError(errors.CodeDecode, "failed to marshal task", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPost, "/api/v1/tasks", body)
	if err != nil {
		return task.Task{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return task.Task{}, c.handleErrorResponse(resp)
	}

	return decodeTask(resp.Body)
}

// Update partially updates a task and returns the server's version.
// Absent patch fields are left untouched server-side.
func (c *Client) Update(ctx context.Context, id int, patch task.Patch) (task.Task, error) {
	if id <= 0 {
		return task.Task{}, errors.ErrTaskIDRequired
	}
	if patch.Empty() {
		return task.Task{}, errors.ErrEmptyPatch
	}
	if err := patch.Validate(); err != nil {
		return task.Task{}, err
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return task.Task{}, errors.NewError(errors.CodeDecode, "failed to marshal patch", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d", id), body)
	if err != nil {
		return task.Task{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return task.Task{}, c.handleErrorResponse(resp)
	}

	return decodeTask(resp.Body)
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return errors.ErrTaskIDRequired
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	return nil
}

// Health reports the backend's health.
func (c *Client) Health(ctx context.Context) (ports.Health, error) {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return ports.Health{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Health{}, c.handleErrorResponse(resp)
	}

	var health ports.Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return ports.Health{}, errors.NewError(errors.CodeDecode, "failed to decode health response", err)
	}
	return health, nil
}

func decodeTask(r io.Reader) (task.Task, error) {
	var t task.Task
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return task.Task{}, errors.NewError(errors.CodeDecode, "failed to decode task", err)
	}
	return t, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff
// retry on transient failures (connect errors, 429, 5xx).
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ctx, span := c.tracer.StartAPISpan(ctx, method, path)

	var lastErr error
	baseDelay := 500 * time.Millisecond

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				span.EndWithError(ctx.Err())
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			span.EndWithError(err)
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.NewError(errors.CodeTransport, "request failed", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		}

		span.SetStatusCode(resp.StatusCode)
		span.End()
		return resp, nil
	}

	err := errors.NewError(errors.CodeAPI,
		fmt.Sprintf("request failed after %d attempts", c.config.MaxRetries+1), lastErr)
	span.EndWithError(err)
	return nil, err
}

// newRequest creates a new HTTP request with required headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, errors.NewError(errors.CodeTransport, "failed to create request", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// errorDetail mirrors the backend's error envelope. detail may be a
// string or an object, so it is kept raw and rendered best-effort.
type errorDetail struct {
	Detail json.RawMessage `json:"detail"`
}

// handleErrorResponse extracts error information from an error response.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(errors.CodeAPI,
			fmt.Sprintf("HTTP %d: failed to read error response", resp.StatusCode), err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errors.ErrTaskNotFound
	}

	message := string(body)
	var envelope errorDetail
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Detail) > 0 {
		var detailString string
		if json.Unmarshal(envelope.Detail, &detailString) == nil {
			message = detailString
		} else {
			var detailObject struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Detail, &detailObject) == nil && detailObject.Message != "" {
				message = detailObject.Message
			}
		}
	}

	errCode := errors.CodeAPI
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		errCode = errors.CodeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		errCode = errors.CodeConfiguration
	}

	return errors.NewError(errCode,
		fmt.Sprintf("HTTP %d: %s", resp.StatusCode, message), nil)
}

// Ensure Client implements the API port.
var _ ports.TaskAPI = (*Client)(nil)
