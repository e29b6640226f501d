package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlikanakelaKarwowski/emularr/internal/config"
	"github.com/AlikanakelaKarwowski/emularr/internal/download"
	"github.com/AlikanakelaKarwowski/emularr/utils"
)

func TestMain(m *testing.M) {
	utils.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	settings, err := config.Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	settings.SetDownloadDir(t.TempDir())
	settings.SetChunkThreads(2)
	ctrl := download.NewController(settings, nil, nil)
	return NewRouter(ctrl, nil)
}

func newPayloadServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := make([]byte, 64<<10)
	rand.New(rand.NewSource(7)).Read(payload)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "game.bin", time.Time{}, bytes.NewReader(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDownloadLifecycleOverAPI(t *testing.T) {
	router := setupRouter(t)
	server := newPayloadServer(t)

	w := doJSON(router, http.MethodPost, "/api/v1/downloads", gin.H{
		"url":  server.URL + "/game.bin",
		"name": "game.bin",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	taskPath := fmt.Sprintf("/api/v1/downloads/%s", created.ID)
	var snap download.Snapshot
	require.Eventually(t, func() bool {
		resp := doJSON(router, http.MethodGet, taskPath, nil)
		if resp.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
		return snap.Status == download.StatusCompleted
	}, 15*time.Second, 20*time.Millisecond)
	assert.Equal(t, float64(1), snap.Progress)

	list := doJSON(router, http.MethodGet, "/api/v1/downloads", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), created.ID)

	// pause is invalid once the task finished
	paused := doJSON(router, http.MethodPost, taskPath+"/pause", nil)
	assert.Equal(t, http.StatusConflict, paused.Code)

	pruned := doJSON(router, http.MethodPost, "/api/v1/downloads/prune", nil)
	assert.Equal(t, http.StatusOK, pruned.Code)
	gone := doJSON(router, http.MethodGet, taskPath, nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestStartDownloadValidation(t *testing.T) {
	router := setupRouter(t)

	missing := doJSON(router, http.MethodPost, "/api/v1/downloads", gin.H{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	invalid := doJSON(router, http.MethodPost, "/api/v1/downloads", gin.H{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestUnknownTaskRoutes(t *testing.T) {
	router := setupRouter(t)

	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/api/v1/downloads/nope", nil).Code)
	assert.Equal(t, http.StatusConflict, doJSON(router, http.MethodPost, "/api/v1/downloads/nope/pause", nil).Code)
	assert.Equal(t, http.StatusConflict, doJSON(router, http.MethodPost, "/api/v1/downloads/nope/resume", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodDelete, "/api/v1/downloads/nope", nil).Code)
}

func TestLibraryWithoutStore(t *testing.T) {
	router := setupRouter(t)

	resp := doJSON(router, http.MethodGet, "/api/v1/library", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealth(t *testing.T) {
	router := setupRouter(t)

	resp := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
