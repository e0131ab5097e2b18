package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Collab/internal/adapters/signal"
	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/app/sfu"
	"github.com/dkeye/Collab/internal/config"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

func newRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Relays:   sfu.NewRelayManager(),
	}
	ctrl := signal.NewSignalWSController(o, signal.Options{Auth: signal.Auth{AppID: "collab"}})
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	return SetupRouter(context.Background(), cfg, o, ctrl), o
}

func TestRouter_Health(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_ClientTokenCookie(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "CollabSessions", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// a returning client keeps its token, so no new cookie is issued
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Result().Cookies())
}

func TestRouter_Channels(t *testing.T) {
	r, o := newRouter(t)
	id, err := domain.NewIdentity("alice", "")
	require.NoError(t, err)
	room := o.Rooms.GetOrCreate("math-101")
	require.NoError(t, room.AddMember("s1", core.NewMemberSession(domain.NewMember(id))))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/channels", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Channels []core.RoomInfo `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []core.RoomInfo{{ID: "math-101", MemberCount: 1}}, body.Channels)
}
