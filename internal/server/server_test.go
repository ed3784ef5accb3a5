package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/handterm/handterm/internal/infrastructure/config"
	"github.com/handterm/handterm/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Shell.Path = "/bin/sh"
	cfg.History.File = filepath.Join(t.TempDir(), "history.json")
	engine := shell.New(cfg, nil, nil)
	t.Cleanup(engine.Quit)
	return New(cfg, engine, nil, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "handterm")

	w = doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestFrameEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/frame", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var frame shell.Frame
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frame))
	assert.NotEmpty(t, frame.Prompt)
	assert.NotEmpty(t, frame.Cwd)
}

func TestExecuteEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/execute", map[string]string{"command": "pwd"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = doJSON(t, srv, http.MethodPost, "/execute", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPTYKeyWithoutSession(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/pty/key", map[string]string{"key": "ENTER"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInterruptWithNothingRunning(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/interrupt", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAutocompleteEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/autocomplete", map[string]interface{}{
		"text": "v", "cursor": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Text   string `json:"text"`
		Cursor int    `json:"cursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "venv ", resp.Text)
	assert.Equal(t, 5, resp.Cursor)
}

func TestJobsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
