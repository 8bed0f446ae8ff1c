package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Conference/internal/app/orch"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

type requestMessage struct {
	Event string          `json:"event"`
	ID    *uint64         `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type replyMessage struct {
	ID   uint64 `json:"id"`
	Data any    `json:"data"`
}

type pushMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type pongReply struct {
	Type string `json:"type"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump handles the connection's events one at a time, in arrival order.
// When it returns, the participant is removed from its room.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, pid domain.ParticipantID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("participant", string(pid)).Msg("readPump closing")
		ctl.Orch.Disconnect(pid)
		ctl.Orch.Sessions.Unbind(pid)
		ctl.opts.Limiter.Forget(pid)
		cancel()
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("readPump read error")
			} else {
				log.Info().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("disconnect")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		ctl.handleSignal(ctx, pid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, pid domain.ParticipantID, c *WsSignalConn, data []byte) {
	var req requestMessage
	if err := json.Unmarshal(data, &req); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	resp := ctl.dispatch(ctx, pid, req)
	if req.ID == nil {
		return
	}
	ctl.sendJSON(c, replyMessage{ID: *req.ID, Data: resp})
}

func (ctl *SignalWSController) dispatch(ctx context.Context, pid domain.ParticipantID, req requestMessage) any {
	switch req.Event {
	case "joinRoom":
		return ctl.handleJoin(ctx, pid, req.Data)
	case "getRouterRtpCapabilities":
		return ctl.handleRouterCapabilities(req.Data)
	case "getRoomParticipants":
		return ctl.handleRoomParticipants(req.Data)
	case "getTransports":
		return ctl.handleTransports(pid, req.Data)
	case "informCapabilities":
		return ctl.handleInformCapabilities(pid, req.Data)
	case "send-transport-connect":
		return ctl.handleTransportConnect(ctx, pid, orch.DirectionSend, req.Data)
	case "recv-transport-connect":
		return ctl.handleTransportConnect(ctx, pid, orch.DirectionRecv, req.Data)
	case "send-transport-produce":
		return ctl.handleProduce(ctx, pid, req.Data)
	case "participant-ready":
		return ctl.handleReady(ctx, pid, req.Data)
	case "audio-consumer-resume":
		return ctl.handleResume(ctx, pid, media.KindAudio, req.Data)
	case "video-consumer-resume":
		return ctl.handleResume(ctx, pid, media.KindVideo, req.Data)
	case "ping":
		return pongReply{Type: "pong"}
	default:
		log.Warn().Str("module", "signal").Str("event", req.Event).Msg("unknown signal")
		return errorReply{Error: "unknown event " + req.Event}
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}
