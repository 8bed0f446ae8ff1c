package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
)

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

func (o *Orchestrator) Transports(pid domain.ParticipantID, roomID domain.RoomID) (core.Transports, error) {
	_, p, err := o.member(pid, roomID)
	if err != nil {
		return core.Transports{}, err
	}
	return core.Transports{
		SendTransport: transportParams(p.SendTransport()),
		RecvTransport: transportParams(p.RecvTransport()),
	}, nil
}

func transportParams(t media.Transport) core.TransportParams {
	return core.TransportParams{
		ID:             t.ID(),
		IceParameters:  t.IceParameters(),
		IceCandidates:  t.IceCandidates(),
		DtlsParameters: t.DtlsParameters(),
	}
}

func (o *Orchestrator) InformCapabilities(pid domain.ParticipantID, roomID domain.RoomID, caps media.RtpCapabilities) error {
	_, p, err := o.member(pid, roomID)
	if err != nil {
		return err
	}
	if err := p.SetCapabilities(caps); err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("participant", string(pid)).Int("codecs", len(caps.Codecs)).Msg("capabilities announced")
	return nil
}

func (o *Orchestrator) ConnectTransport(ctx context.Context, pid domain.ParticipantID, roomID domain.RoomID, dir Direction, dtls media.DtlsParameters) error {
	_, p, err := o.member(pid, roomID)
	if err != nil {
		return err
	}
	t := p.SendTransport()
	if dir == DirectionRecv {
		t = p.RecvTransport()
	}
	if err := t.Connect(ctx, dtls); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("participant", string(pid)).Str("direction", string(dir)).Msg("transport connect failed")
		return fmt.Errorf("%s transport connect: %w", dir, err)
	}
	return nil
}

// Produce creates a producer of kind on pid's send transport and returns
// its id. Producers created after ready are pushed to the room at once.
func (o *Orchestrator) Produce(ctx context.Context, pid domain.ParticipantID, roomID domain.RoomID, kind string, params media.RtpParameters) (id string, err error) {
	ctx, span := startSpan(ctx, "orch.Produce", pid, roomID)
	defer func() { endSpan(span, err) }()

	k, err := media.ParseKind(kind)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidKind, err)
	}
	room, _, err := o.member(pid, roomID)
	if err != nil {
		return "", err
	}
	id, deliveries, err := room.Produce(ctx, pid, k, params)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("participant", string(pid)).Str("kind", kind).Msg("produce failed")
		return "", err
	}
	o.deliver(room, deliveries)
	return id, nil
}

// Ready runs the fan-out for pid: the reply lists what pid now receives,
// and every other member gets a push with what it receives from pid.
func (o *Orchestrator) Ready(ctx context.Context, pid domain.ParticipantID, roomID domain.RoomID) (consumers []core.ParticipantConsumers, err error) {
	ctx, span := startSpan(ctx, "orch.Ready", pid, roomID)
	defer func() { endSpan(span, err) }()

	room, _, err := o.member(pid, roomID)
	if err != nil {
		return nil, err
	}
	own, deliveries, err := room.Ready(ctx, pid)
	if err != nil {
		return nil, err
	}
	o.deliver(room, deliveries)
	return own, nil
}

func (o *Orchestrator) ResumeConsumer(ctx context.Context, pid domain.ParticipantID, roomID domain.RoomID, other domain.ParticipantID, kind media.Kind) error {
	room, _, err := o.member(pid, roomID)
	if err != nil {
		return err
	}
	return room.ResumeConsumer(ctx, pid, other, kind)
}
