package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calegray/voxnote/internal/config"
	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/internal/pipeline"
	"github.com/calegray/voxnote/internal/server"
)

type fakeStatus struct {
	snap pipeline.RunStatus
}

func (f *fakeStatus) Snapshot() pipeline.RunStatus { return f.snap }

func newTestServer(t *testing.T, status server.StatusSource) (*server.Server, *notes.Repository) {
	t.Helper()

	cfg := &config.Config{
		Env:        "test",
		Port:       "8080",
		HSTSMaxAge: 31536000,
		CSPMode:    "relaxed",
		LogLevel:   "info",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Page size 2 keeps pagination observable with a handful of notes.
	repo, err := notes.NewRepository(filepath.Join(t.TempDir(), "notes.json"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return server.New(cfg, logger, repo, status), repo
}

func seedNote(t *testing.T, repo *notes.Repository, title string) notes.VoiceNote {
	t.Helper()
	n := notes.New("raw "+title, 3.5, title+".mp3")
	n.Title = title
	n.CleanedText = "cleaned " + title
	require.NoError(t, repo.Add(context.Background(), n))
	return n
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv.Router(), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.Contains(t, w.Body.String(), "voxnote")
	// Security middleware applies to every route.
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestListNotes_Pagination(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	first := seedNote(t, repo, "first")
	second := seedNote(t, repo, "second")
	third := seedNote(t, repo, "third")

	var resp struct {
		Notes []notes.VoiceNote `json:"notes"`
		Page  int               `json:"page"`
		Total int               `json:"total"`
	}

	w := do(t, srv.Router(), http.MethodGet, "/api/v1/notes")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notes, 2)
	// Newest first.
	assert.Equal(t, third.ID, resp.Notes[0].ID)
	assert.Equal(t, second.ID, resp.Notes[1].ID)
	assert.Equal(t, 0, resp.Page)
	assert.Equal(t, 3, resp.Total)

	w = do(t, srv.Router(), http.MethodGet, "/api/v1/notes?page=1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notes, 1)
	assert.Equal(t, first.ID, resp.Notes[0].ID)

	// Pages past the end are empty, not an error.
	w = do(t, srv.Router(), http.MethodGet, "/api/v1/notes?page=7")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Notes)
	assert.Equal(t, 3, resp.Total)
}

func TestListNotes_BadPage(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, target := range []string{"/api/v1/notes?page=-1", "/api/v1/notes?page=x"} {
		w := do(t, srv.Router(), http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestGetNote(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	n := seedNote(t, repo, "garden")

	w := do(t, srv.Router(), http.MethodGet, "/api/v1/notes/"+n.ID)
	require.Equal(t, http.StatusOK, w.Code)

	var got notes.VoiceNote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "cleaned garden", got.CleanedText)

	w = do(t, srv.Router(), http.MethodGet, "/api/v1/notes/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteNote_Idempotent(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	n := seedNote(t, repo, "gone")

	w := do(t, srv.Router(), http.MethodDelete, "/api/v1/notes/"+n.ID)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, repo.Len())

	// Deleting again still succeeds.
	w = do(t, srv.Router(), http.MethodDelete, "/api/v1/notes/"+n.ID)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestStatus_NoPipeline(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	seedNote(t, repo, "one")

	w := do(t, srv.Router(), http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		State     string `json:"state"`
		Notes     int    `json:"notes"`
		LastError string `json:"lastError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, 1, resp.Notes)
	assert.Empty(t, resp.LastError)
}

func TestStatus_ReportsPipeline(t *testing.T) {
	status := &fakeStatus{snap: pipeline.RunStatus{
		State: pipeline.StateCleaning,
		Err:   errors.New("ollama is unavailable"),
	}}
	srv, _ := newTestServer(t, status)

	w := do(t, srv.Router(), http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		State     string `json:"state"`
		LastError string `json:"lastError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cleaning", resp.State)
	assert.Contains(t, resp.LastError, "ollama is unavailable")
}
