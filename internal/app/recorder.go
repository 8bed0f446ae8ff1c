package app

import (
	"context"

	"github.com/dkeye/Conference/internal/media"
)

// Recorder receives lifecycle counts. telemetry.Metrics implements it.
type Recorder interface {
	RoomOpened(ctx context.Context)
	RoomClosed(ctx context.Context)
	ParticipantJoined(ctx context.Context)
	ParticipantLeft(ctx context.Context)
	ConsumerCreated(ctx context.Context, kind media.Kind)
	EngineFailure(ctx context.Context, op string)
}

type nopRecorder struct{}

func (nopRecorder) RoomOpened(context.Context)                  {}
func (nopRecorder) RoomClosed(context.Context)                  {}
func (nopRecorder) ParticipantJoined(context.Context)           {}
func (nopRecorder) ParticipantLeft(context.Context)             {}
func (nopRecorder) ConsumerCreated(context.Context, media.Kind) {}
func (nopRecorder) EngineFailure(context.Context, string)       {}
