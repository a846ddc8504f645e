package handler

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/internal/hub"
	pkgjwt "github.com/directfanz/interact-service/pkg/jwt"
	"github.com/directfanz/interact-service/pkg/middleware"
)

type restFixture struct {
	router *gin.Engine
	hub    *hub.Hub
	key    *rsa.PrivateKey
	wsCfg  config.WebSocketConfig
}

func newRESTFixture(t *testing.T) *restFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, pub := newTestKeyPair(t)
	verifier, err := pkgjwt.NewVerifier(pub, "directfanz")
	require.NoError(t, err)

	wsCfg := config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      5 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 16,
	}
	h := hub.NewHub(wsCfg)

	router := gin.New()
	NewHTTPHandler(h, middleware.NewAuthMiddleware(verifier)).RegisterRoutes(router)

	return &restFixture{router: router, hub: h, key: key, wsCfg: wsCfg}
}

// seedViewer puts a connected viewer into a stream room directly through
// the hub, the same state the WebSocket path would leave behind.
func (f *restFixture) seedViewer(t *testing.T, connID, userID, streamID string, likeSeed int) {
	t.Helper()

	c := hub.NewClient(connID, domain.Identity{UserID: userID, Username: userID, Role: "viewer"}, f.hub, nil, f.wsCfg)
	f.hub.AttachClient(c)
	_, joined := f.hub.JoinStream(c, streamID, likeSeed)
	require.True(t, joined)
}

func (f *restFixture) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestStreamEndpointsRequireAuth(t *testing.T) {
	f := newRESTFixture(t)

	for _, path := range []string{"/api/v1/streams", "/api/v1/streams/stream-1/stats"} {
		w := f.get(t, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	}
}

func TestListStreams(t *testing.T) {
	f := newRESTFixture(t)
	f.seedViewer(t, "conn-1", "user-1", "stream-b", 0)
	f.seedViewer(t, "conn-2", "user-2", "stream-a", 3)
	f.seedViewer(t, "conn-3", "user-3", "stream-a", 0)

	token := signAccessToken(t, f.key, "user-9", "observer", "viewer")
	w := f.get(t, "/api/v1/streams", token)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.True(t, env.Success)

	var data struct {
		Streams []domain.StreamStats `json:"streams"`
		Total   int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	require.Equal(t, 2, data.Total)
	assert.Equal(t, "stream-a", data.Streams[0].StreamID)
	assert.Equal(t, 2, data.Streams[0].ViewerCount)
	assert.Equal(t, 3, data.Streams[0].LikeCount)
	assert.Equal(t, "stream-b", data.Streams[1].StreamID)
	assert.Equal(t, 1, data.Streams[1].ViewerCount)
}

func TestGetStreamStats(t *testing.T) {
	f := newRESTFixture(t)
	f.seedViewer(t, "conn-1", "user-1", "stream-1", 12)

	token := signAccessToken(t, f.key, "user-9", "observer", "viewer")
	w := f.get(t, "/api/v1/streams/stream-1/stats", token)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.True(t, env.Success)

	var stats domain.StreamStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, "stream-1", stats.StreamID)
	assert.Equal(t, 1, stats.ViewerCount)
	assert.Equal(t, 12, stats.LikeCount)
}

func TestGetStreamStatsNotFound(t *testing.T) {
	f := newRESTFixture(t)

	token := signAccessToken(t, f.key, "user-9", "observer", "viewer")
	w := f.get(t, "/api/v1/streams/stream-ghost/stats", token)
	require.Equal(t, http.StatusNotFound, w.Code)

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
