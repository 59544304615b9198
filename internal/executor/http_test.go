package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobs/scheduler/internal/models"
)

func TestHTTPExecutor_SuccessOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: `{"url":"` + srv.URL + `","headers":{"X-Test":"custom"}}`}

	result, err := e.Execute(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	require.NotNil(t, result.Output)
	assert.Equal(t, "pong", *result.Output)
	assert.Equal(t, http.StatusOK, result.Metadata["statusCode"])
}

func TestHTTPExecutor_ServerErrorIsRecoverableFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: `{"url":"` + srv.URL + `"}`}

	result, err := e.Execute(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "server error")
}

func TestHTTPExecutor_ClientErrorIsRecoverableFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: `{"url":"` + srv.URL + `"}`}

	result, err := e.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "client error")
}

func TestHTTPExecutor_MissingURLIsUnrecoverable(t *testing.T) {
	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: `{}`}

	_, err := e.Execute(context.Background(), task)
	require.Error(t, err)
	var unrecoverable *UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
}

func TestHTTPExecutor_NetworkErrorIsRecoverableFailure(t *testing.T) {
	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: `{"url":"http://127.0.0.1:1"}`}

	result, err := e.Execute(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "network error")
}

func TestHTTPExecutor_InvalidPayloadIsUnrecoverable(t *testing.T) {
	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: "not json"}

	_, err := e.Execute(context.Background(), task)
	require.Error(t, err)
	var unrecoverable *UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
}

func TestHTTPExecutor_MethodDefaultsToGET(t *testing.T) {
	var seenMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := &HTTPExecutor{}
	task := &models.Task{Type: models.TaskTypeHTTP, Payload: `{"url":"` + srv.URL + `"}`}

	_, err := e.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, seenMethod)
}
