// Package worker implements the task-queue client: polling for pending
// backtest tasks, claiming them, driving the simulation, and reporting
// results back.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"quantworker/internal/domain"
)

// Per-call timeouts. Reporting a full result document gets longer because
// trade lists and equity curves can be large.
const (
	pollTimeout   = 10 * time.Second
	claimTimeout  = 10 * time.Second
	reportTimeout = 30 * time.Second
	failTimeout   = 10 * time.Second
)

// QueueClient talks to the remote task queue over HTTP. Every request
// carries the bearer token and identifies this worker.
type QueueClient struct {
	apiBase  string
	token    string
	workerID string
	http     *http.Client
}

// NewQueueClient creates a client for the queue rooted at apiBase
// (e.g. "http://localhost:3001/api").
func NewQueueClient(apiBase, token, workerID string) *QueueClient {
	return &QueueClient{
		apiBase:  apiBase,
		token:    token,
		workerID: workerID,
		http:     &http.Client{},
	}
}

// Poll asks the queue for one pending task. It returns (nil, nil) when no
// work is available (204 or an empty body). The server may respond with
// either a single task object or a list; the first element is taken.
func (c *QueueClient) Poll(ctx context.Context) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/backtest/tasks/pending/poll?worker_id=%s", c.apiBase, url.QueryEscape(c.workerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling queue: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("poll failed: %d - %s", resp.StatusCode, body)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading poll response: %w", err)
	}
	return decodeTask(raw)
}

// decodeTask accepts either a task object or a list of tasks and returns the
// first one, or nil when the payload is empty.
func decodeTask(raw []byte) (*domain.Task, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var tasks []domain.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, fmt.Errorf("decoding task list: %w", err)
		}
		if len(tasks) == 0 || tasks[0].TaskID == "" {
			return nil, nil
		}
		return &tasks[0], nil
	}

	var task domain.Task
	if err := json.Unmarshal(trimmed, &task); err != nil {
		return nil, fmt.Errorf("decoding task: %w", err)
	}
	if task.TaskID == "" {
		return nil, nil
	}
	return &task, nil
}

// Claim asks the queue to assign the task to this worker. Any non-200
// response is a claim failure; the caller abandons the task without
// reporting, since another worker may have won it.
func (c *QueueClient) Claim(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, claimTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/backtest/tasks/%s/claim?worker_id=%s",
		c.apiBase, url.PathEscape(taskID), url.QueryEscape(c.workerID))
	return c.post(ctx, u, nil, "claim")
}

// ReportSuccess posts the result document for a completed task.
func (c *QueueClient) ReportSuccess(ctx context.Context, taskID string, doc *domain.ResultDocument) error {
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/backtest/tasks/%s/report", c.apiBase, url.PathEscape(taskID))
	return c.post(ctx, u, doc, "report")
}

// ReportFailure posts a failure payload for a task this worker claimed but
// could not complete.
func (c *QueueClient) ReportFailure(ctx context.Context, taskID, errorMessage string) error {
	ctx, cancel := context.WithTimeout(ctx, failTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/backtest/tasks/%s/fail", c.apiBase, url.PathEscape(taskID))
	payload := map[string]string{
		"worker_id":     c.workerID,
		"error_message": errorMessage,
	}
	return c.post(ctx, u, payload, "fail")
}

func (c *QueueClient) post(ctx context.Context, u string, body any, op string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s failed: %d - %s", op, resp.StatusCode, detail)
	}
	return nil
}

func (c *QueueClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
