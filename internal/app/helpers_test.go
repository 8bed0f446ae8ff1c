package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/dkeye/Conference/internal/media/mediatest"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*RoomRegistry, *mediatest.Engine) {
	t.Helper()
	eng := mediatest.NewEngine(mediatest.NewMemoryEngine())
	reg := NewRoomRegistry(eng, RegistryConfig{
		Codecs:    mediatest.Codecs(),
		Transport: mediatest.TransportOptions(),
	})
	t.Cleanup(reg.Close)
	return reg, eng
}

func join(t *testing.T, reg *RoomRegistry, roomID string, pid string) (*Room, *Participant) {
	t.Helper()
	room, p, err := reg.CreateOrJoin(context.Background(), domain.RoomID(roomID), domain.ParticipantID(pid))
	require.NoError(t, err)
	return room, p
}

// withMedia announces full capabilities and produces the given kinds.
func withMedia(t *testing.T, room *Room, p *Participant, produce ...media.Kind) {
	t.Helper()
	require.NoError(t, p.SetCapabilities(mediatest.ClientCapabilities()))
	for _, kind := range produce {
		_, deliveries, err := room.Produce(context.Background(), p.ID(), kind, mediatest.Params(kind))
		require.NoError(t, err)
		require.Empty(t, deliveries)
	}
}

func pid(i int) string { return fmt.Sprintf("p%02d", i) }
