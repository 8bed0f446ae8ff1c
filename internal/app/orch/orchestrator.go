// Package orch implements the signaling operations on top of the room
// registry: it resolves ids to rooms and participants, drives the media
// engine through them and pushes events to the other members of a room.
package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	EventNewParticipant          = "newParticipant"
	EventParticipantDisconnect   = "participant-disconnect"
	EventNewParticipantConsumers = "new-participant-consumers"
)

var tracer = otel.Tracer("github.com/dkeye/Conference/internal/app/orch")

// Outbox delivers a push event to one participant's connection.
type Outbox interface {
	Push(to domain.ParticipantID, event string, data any) error
}

type Orchestrator struct {
	Rooms    *app.RoomRegistry
	Sessions *app.Sessions
	Policy   app.Policy
	Out      Outbox

	participantLocks *app.KeyedMutex[domain.ParticipantID]
}

func New(rooms *app.RoomRegistry, sessions *app.Sessions, policy app.Policy, out Outbox) *Orchestrator {
	return &Orchestrator{
		Rooms:            rooms,
		Sessions:         sessions,
		Policy:           policy,
		Out:              out,
		participantLocks: app.NewKeyedMutex[domain.ParticipantID](),
	}
}

// member resolves the acting participant inside roomID.
func (o *Orchestrator) member(pid domain.ParticipantID, roomID domain.RoomID) (*app.Room, *app.Participant, error) {
	current, ok := o.Sessions.RoomOf(pid)
	if !ok || current != roomID {
		return nil, nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotJoined)
	}
	room, ok := o.Rooms.Lookup(roomID)
	if !ok {
		return nil, nil, fmt.Errorf("room %s: %w", roomID, domain.ErrRoomNotFound)
	}
	p, ok := room.Participant(pid)
	if !ok {
		return nil, nil, fmt.Errorf("participant %s: %w", pid, domain.ErrParticipantNotFound)
	}
	return room, p, nil
}

// push sends to one member and applies the backpressure policy on failure.
func (o *Orchestrator) push(room domain.RoomID, to domain.ParticipantID, event string, data any) {
	if o.Out == nil {
		return
	}
	err := o.Out.Push(to, event, data)
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Str("to", string(to)).Str("event", event).Msg("push failed")
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(room, to) {
	case app.KickMember:
		o.Sessions.Cancel(to)
	case app.DropFrame:
		log.Debug().Str("module", "orch").Str("to", string(to)).Str("event", event).Msg("push dropped")
	case app.NoAction:
	}
}

// broadcast pushes to every member of room except the sender.
func (o *Orchestrator) broadcast(room *app.Room, from domain.ParticipantID, event string, data any) {
	for _, q := range room.Others(from) {
		o.push(room.ID(), q.ID(), event, data)
	}
}

func (o *Orchestrator) deliver(room *app.Room, deliveries []app.Delivery) {
	for _, d := range deliveries {
		o.push(room.ID(), d.To, EventNewParticipantConsumers, d.Consumers)
	}
}

func startSpan(ctx context.Context, name string, pid domain.ParticipantID, roomID domain.RoomID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("participant", string(pid)),
		attribute.String("room", string(roomID)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
