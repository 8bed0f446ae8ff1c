package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Conference/internal/app/orch"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
)

type successReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

var acked = successReply{Success: true}

type capabilitiesPayload struct {
	RoomID       string                `json:"roomId"`
	Capabilities media.RtpCapabilities `json:"capabilities"`
}

type connectPayload struct {
	RoomID         string               `json:"roomId"`
	DtlsParameters media.DtlsParameters `json:"dtlsParameters"`
}

type producePayload struct {
	RoomID        string              `json:"roomId"`
	Kind          string              `json:"kind"`
	RtpParameters media.RtpParameters `json:"rtpParameters"`
}

type resumePayload struct {
	RoomID             string `json:"roomId"`
	OtherParticipantID string `json:"otherParticipantId"`
}

type produceReply struct {
	ID string `json:"id"`
}

func decode(data json.RawMessage, v any, roomID *string) (domain.RoomID, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return "", err
	}
	return domain.NewRoomID(*roomID)
}

func (ctl *SignalWSController) handleTransports(pid domain.ParticipantID, data json.RawMessage) any {
	roomID, err := parseRoomID(data)
	if err != nil {
		return fail(err)
	}
	t, err := ctl.Orch.Transports(pid, roomID)
	if err != nil {
		return fail(err)
	}
	return t
}

func (ctl *SignalWSController) handleInformCapabilities(pid domain.ParticipantID, data json.RawMessage) any {
	var p capabilitiesPayload
	roomID, err := decode(data, &p, &p.RoomID)
	if err != nil {
		return fail(err)
	}
	if err := ctl.Orch.InformCapabilities(pid, roomID, p.Capabilities); err != nil {
		return fail(err)
	}
	return acked
}

func (ctl *SignalWSController) handleTransportConnect(ctx context.Context, pid domain.ParticipantID, dir orch.Direction, data json.RawMessage) any {
	var p connectPayload
	roomID, err := decode(data, &p, &p.RoomID)
	if err != nil {
		return successReply{Error: err.Error()}
	}
	if err := ctl.Orch.ConnectTransport(ctx, pid, roomID, dir, p.DtlsParameters); err != nil {
		return successReply{Error: err.Error()}
	}
	return acked
}

func (ctl *SignalWSController) handleProduce(ctx context.Context, pid domain.ParticipantID, data json.RawMessage) any {
	var p producePayload
	roomID, err := decode(data, &p, &p.RoomID)
	if err != nil {
		return fail(err)
	}
	id, err := ctl.Orch.Produce(ctx, pid, roomID, p.Kind, p.RtpParameters)
	if err != nil {
		return fail(err)
	}
	log.Info().Str("module", "signal").Str("participant", string(pid)).Str("kind", p.Kind).Str("producer", id).Msg("produce")
	return produceReply{ID: id}
}

func (ctl *SignalWSController) handleReady(ctx context.Context, pid domain.ParticipantID, data json.RawMessage) any {
	roomID, err := parseRoomID(data)
	if err != nil {
		return fail(err)
	}
	consumers, err := ctl.Orch.Ready(ctx, pid, roomID)
	if err != nil {
		return fail(err)
	}
	return consumers
}

func (ctl *SignalWSController) handleResume(ctx context.Context, pid domain.ParticipantID, kind media.Kind, data json.RawMessage) any {
	var p resumePayload
	roomID, err := decode(data, &p, &p.RoomID)
	if err != nil {
		return fail(err)
	}
	if err := ctl.Orch.ResumeConsumer(ctx, pid, roomID, domain.ParticipantID(p.OtherParticipantID), kind); err != nil {
		return fail(err)
	}
	return acked
}
