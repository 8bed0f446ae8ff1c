package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Conference/internal/adapters/signal"
	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/orch"
	"github.com/dkeye/Conference/internal/config"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/media/mediatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (nethttp.Handler, *app.RoomRegistry) {
	t.Helper()
	rooms := app.NewRoomRegistry(mediatest.NewMemoryEngine(), app.RegistryConfig{
		Codecs:    mediatest.Codecs(),
		Transport: mediatest.TransportOptions(),
	})
	t.Cleanup(rooms.Close)
	o := orch.New(rooms, app.NewSessions(), app.SimplePolicy{}, nil)
	ctl := signal.NewSignalWSController(o, signal.Options{})
	o.Out = ctl
	cfg := &config.Config{Mode: "release", Secret: "test-secret"}
	return SetupRouter(context.Background(), cfg, rooms, ctl), rooms
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Result().Cookies(), "client token session cookie is issued")
}

func TestListRooms(t *testing.T) {
	h, rooms := newTestRouter(t)
	_, _, err := rooms.CreateOrJoin(context.Background(), "r1", "a")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/api/rooms", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)

	var got []core.RoomInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []core.RoomInfo{{ID: "r1", Participants: 1}}, got)
}
