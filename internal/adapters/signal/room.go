package signal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

var errRateLimited = errors.New("too many join attempts")

type errorReply struct {
	Error string `json:"error"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

// parseRoomID accepts either a bare JSON string or an object with roomId.
func parseRoomID(data json.RawMessage) (domain.RoomID, error) {
	var raw string
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return "", err
		}
	} else {
		var p roomPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return "", err
		}
		raw = p.RoomID
	}
	return domain.NewRoomID(raw)
}

func fail(err error) errorReply {
	return errorReply{Error: err.Error()}
}

type joinReply struct {
	Participants []core.ParticipantSummary `json:"participants"`
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, pid domain.ParticipantID, data json.RawMessage) any {
	roomID, err := parseRoomID(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("bad join payload")
		return fail(err)
	}
	if !ctl.opts.Limiter.Allow(pid) {
		log.Warn().Str("module", "signal").Str("participant", string(pid)).Str("room", string(roomID)).Msg("join rate limited")
		return fail(errRateLimited)
	}
	summaries, err := ctl.Orch.Join(ctx, pid, roomID)
	if err != nil {
		return fail(err)
	}
	return joinReply{Participants: summaries}
}

func (ctl *SignalWSController) handleRouterCapabilities(data json.RawMessage) any {
	roomID, err := parseRoomID(data)
	if err != nil {
		return fail(err)
	}
	caps, err := ctl.Orch.RouterCapabilities(roomID)
	if err != nil {
		return fail(err)
	}
	return caps
}

func (ctl *SignalWSController) handleRoomParticipants(data json.RawMessage) any {
	roomID, err := parseRoomID(data)
	if err != nil {
		return fail(err)
	}
	return ctl.Orch.RoomParticipants(roomID)
}
