package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jobs/scheduler/internal/models"
)

// HTTPExecutor issues an HTTP request described by the task payload:
// {"url", "method"?, "headers"?, "body"?}. A 2xx response is success; any
// other status (and any transport-level failure) is a recoverable
// failure - the Retry Policy decides whether to retry it.
type HTTPExecutor struct {
	Client *http.Client
}

type httpPayload struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (e *HTTPExecutor) Handles(taskType models.TaskType) bool {
	return taskType == models.TaskTypeHTTP
}

func (e *HTTPExecutor) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e *HTTPExecutor) Execute(ctx context.Context, task *models.Task) (*ExecutionResult, error) {
	var payload httpPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return nil, Unrecoverable("http task payload is not valid JSON: %v", err)
	}
	if payload.URL == "" {
		return nil, Unrecoverable("http task payload is missing \"url\"")
	}
	method := strings.ToUpper(payload.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if payload.Body != "" {
		body = strings.NewReader(payload.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, payload.URL, body)
	if err != nil {
		return nil, Unrecoverable("http task request could not be built: %v", err)
	}
	for k, v := range payload.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client().Do(req)
	if err != nil {
		return Failure("http network error: "+err.Error(), models.JSONMap{"error": "Network error"}), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Failure("http response could not be read: "+err.Error(), nil), nil
	}

	responseHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		responseHeaders[k] = resp.Header.Get(k)
	}
	metadata := models.JSONMap{
		"statusCode":      resp.StatusCode,
		"method":          method,
		"url":             payload.URL,
		"responseHeaders": responseHeaders,
	}

	output := string(respBody)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Success(output, metadata), nil
	}

	var msg string
	switch {
	case resp.StatusCode >= 500:
		msg = "http server error: status " + resp.Status
		metadata["error"] = "Server error"
	case resp.StatusCode >= 400:
		msg = "http client error: status " + resp.Status
		metadata["error"] = "Client error"
	default:
		msg = "http request did not succeed: status " + resp.Status
	}
	return &ExecutionResult{Success: false, Output: &output, Error: msg, Metadata: metadata}, nil
}
