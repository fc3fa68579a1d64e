package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core/repository"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/hardware"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/models"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/profiles"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/service"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

type staticPolicy struct{}

func (staticPolicy) Policy() types.EncodingPolicy { return types.DefaultEncodingPolicy() }

type memoryHistory struct {
	records []*models.DecisionRecord
	filters []repository.DecisionFilter
}

func (m *memoryHistory) Create(ctx context.Context, record *models.DecisionRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memoryHistory) List(ctx context.Context, filter repository.DecisionFilter) ([]*models.DecisionRecord, error) {
	m.filters = append(m.filters, filter)
	return m.records, nil
}

type fakeHost struct{}

func (fakeHost) Host(ctx context.Context) hardware.HostInfo {
	return hardware.HostInfo{Hostname: "media-01", LogicalCPUs: 8}
}

func (fakeHost) Detect(ctx context.Context) *hardware.Info {
	return &hardware.Info{Accel: types.HardwareAccelNone}
}

func setupRouter(t *testing.T) (*gin.Engine, *memoryHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	doc, err := profiles.ParseDocumentBytes([]byte(`
name: Roku
user_agent_patterns: ["Roku/"]
direct_play:
  - container: mp4,mkv
    type: Video
    video_codec: h264,hevc
`))
	require.NoError(t, err)
	roku, _, err := doc.ToProfile()
	require.NoError(t, err)

	registry := profiles.NewRegistry(hclog.NewNullLogger(), nil)
	require.NoError(t, registry.Replace([]*types.CapabilityProfile{roku}))

	history := &memoryHistory{}
	svc := service.NewPlaybackService(hclog.NewNullLogger(), service.Dependencies{
		Profiles: registry,
		Policy:   staticPolicy{},
		History:  history,
	})

	router := gin.New()
	RegisterRoutes(router.Group("/api/playback"), NewHandler(svc, fakeHost{}, hclog.NewNullLogger()))
	return router, history
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func hevcMedia() map[string]interface{} {
	return map[string]interface{}{
		"container": "mkv",
		"streams": []map[string]interface{}{
			{"type": "Video", "codec": "hevc"},
			{"type": "Audio", "codec": "aac", "channels": 2},
		},
	}
}

func TestHandler_Decide(t *testing.T) {
	router, history := setupRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/playback/decide",
		map[string]interface{}{"media": hevcMedia()},
		map[string]string{"User-Agent": "Roku/DVP-12.0"})
	require.Equal(t, http.StatusOK, w.Code)

	decision := body["decision"].(map[string]interface{})
	assert.Equal(t, "direct_play", decision["kind"])
	assert.Equal(t, "Roku", decision["profile"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["trace"])
	require.Len(t, history.records, 1)
	assert.Equal(t, "Roku/DVP-12.0", history.records[0].UserAgent)

	// Generic device transcodes
	w, body = doJSON(t, router, http.MethodPost, "/api/playback/decide",
		map[string]interface{}{"device": map[string]string{"name": "Toaster"}, "media": hevcMedia()}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decision = body["decision"].(map[string]interface{})
	assert.Equal(t, "transcode", decision["kind"])
	plan := decision["plan"].(map[string]interface{})
	assert.Equal(t, "ts", plan["target_container"])
}

func TestHandler_DecideErrors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed json", "{not json", http.StatusBadRequest},
		{"no media", map[string]interface{}{}, http.StatusBadRequest},
		{"no analyzer for path", map[string]interface{}{"media_path": "/media/movie.mkv"}, http.StatusBadRequest},
		{"unknown profile", map[string]interface{}{"profile": "Toaster", "media": hevcMedia()}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := doJSON(t, router, http.MethodPost, "/api/playback/decide", tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandler_Profiles(t *testing.T) {
	router, _ := setupRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/api/playback/profiles", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, body["count"])

	w, body = doJSON(t, router, http.MethodGet, "/api/playback/profiles/Generic%20Device", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Generic Device", body["name"])
	assert.Equal(t, "DLNA", body["protocol_info"])

	w, _ = doJSON(t, router, http.MethodGet, "/api/playback/profiles/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_PolicyAndHealth(t *testing.T) {
	router, _ := setupRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/api/playback/policy", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 23.0, body["h264_crf"])
	assert.Equal(t, true, body["enable_direct_stream"])

	w, body = doJSON(t, router, http.MethodGet, "/api/playback/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	host := body["host"].(map[string]interface{})
	assert.Equal(t, "media-01", host["hostname"])
}

func TestHandler_History(t *testing.T) {
	router, history := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/playback/decide", map[string]interface{}{"media": hevcMedia()}, nil)

	w, body := doJSON(t, router, http.MethodGet, "/api/playback/history?limit=10&kind=transcode&since=2026-01-01T00:00:00Z", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, body["count"])
	require.Len(t, history.filters, 1)
	assert.Equal(t, 10, history.filters[0].Limit)
	assert.Equal(t, "transcode", history.filters[0].Kind)
	assert.False(t, history.filters[0].Since.IsZero())

	for _, query := range []string{"limit=0", "limit=abc", "offset=-1", "since=yesterday"} {
		w, _ = doJSON(t, router, http.MethodGet, "/api/playback/history?"+query, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}
