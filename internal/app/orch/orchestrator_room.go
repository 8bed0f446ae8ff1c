package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
)

// Join puts pid into roomID and returns the summaries of everyone already
// there. A participant joining a different room leaves its old room first.
func (o *Orchestrator) Join(ctx context.Context, pid domain.ParticipantID, roomID domain.RoomID) (summaries []core.ParticipantSummary, err error) {
	ctx, span := startSpan(ctx, "orch.Join", pid, roomID)
	defer func() { endSpan(span, err) }()

	unlock := o.participantLocks.Lock(pid)
	defer unlock()

	if current, ok := o.Sessions.RoomOf(pid); ok {
		if current == roomID {
			if room, ok := o.Rooms.Lookup(roomID); ok {
				if _, ok := room.Participant(pid); ok {
					return othersOf(room, pid), nil
				}
			}
		} else {
			log.Info().Str("module", "orch").Str("participant", string(pid)).Str("from_room", string(current)).Msg("leaving previous room")
			o.leaveLocked(pid, current)
		}
	}

	room, p, err := o.Rooms.CreateOrJoin(ctx, roomID, pid)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("participant", string(pid)).Str("room", string(roomID)).Msg("join failed")
		return nil, fmt.Errorf("join room %s: %w", roomID, err)
	}
	if !o.Sessions.UpdateRoom(pid, roomID) {
		// The connection went away while the join was in flight.
		o.Rooms.Remove(roomID, pid)
		return nil, fmt.Errorf("join room %s: %w", roomID, domain.ErrParticipantClosed)
	}

	o.broadcast(room, pid, EventNewParticipant, p.Summary())
	log.Info().Str("module", "orch").Str("participant", string(pid)).Str("room", string(roomID)).Msg("joined")
	return othersOf(room, pid), nil
}

// Disconnect removes pid from whatever room it is in. Safe to call twice.
func (o *Orchestrator) Disconnect(pid domain.ParticipantID) {
	unlock := o.participantLocks.Lock(pid)
	defer unlock()

	if f, ok := o.Policy.(interface{ Forget(domain.ParticipantID) }); ok {
		f.Forget(pid)
	}
	roomID, ok := o.Sessions.RoomOf(pid)
	if !ok {
		return
	}
	o.leaveLocked(pid, roomID)
}

func (o *Orchestrator) leaveLocked(pid domain.ParticipantID, roomID domain.RoomID) {
	room, exists := o.Rooms.Lookup(roomID)
	removed, closed := o.Rooms.Remove(roomID, pid)
	o.Sessions.ClearRoom(pid)
	if !exists || !removed || closed {
		return
	}
	for _, q := range room.Participants() {
		o.push(roomID, q.ID(), EventParticipantDisconnect, pid)
	}
}

func (o *Orchestrator) RouterCapabilities(roomID domain.RoomID) (media.RtpCapabilities, error) {
	room, ok := o.Rooms.Lookup(roomID)
	if !ok {
		return media.RtpCapabilities{}, fmt.Errorf("room %s: %w", roomID, domain.ErrRoomNotFound)
	}
	return room.RtpCapabilities(), nil
}

// RoomParticipants counts the members of roomID; an absent room has none.
func (o *Orchestrator) RoomParticipants(roomID domain.RoomID) int {
	room, ok := o.Rooms.Lookup(roomID)
	if !ok {
		return 0
	}
	return room.Count()
}

func othersOf(room *app.Room, pid domain.ParticipantID) []core.ParticipantSummary {
	others := room.Others(pid)
	out := make([]core.ParticipantSummary, 0, len(others))
	for _, q := range others {
		out = append(out, q.Summary())
	}
	return out
}
