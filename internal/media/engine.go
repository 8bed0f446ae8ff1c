// Package media declares the media engine the signaling core drives.
// Implementations own routing, ICE/DTLS and RTP forwarding; the core only
// creates, connects, pauses and closes engine objects through these interfaces.
package media

import (
	"context"
	"errors"
)

var (
	// ErrEngine marks failures reported by the media engine itself.
	ErrEngine = errors.New("media engine failure")
	ErrClosed = errors.New("media object closed")
)

type Engine interface {
	CreateWorker(ctx context.Context) (Worker, error)
}

type Worker interface {
	ID() string
	CreateRouter(ctx context.Context, codecs []RtpCodecCapability) (Router, error)
	Close() error
}

type Router interface {
	ID() string
	RtpCapabilities() RtpCapabilities
	CreateWebRtcTransport(ctx context.Context, opts TransportOptions) (Transport, error)
	// CanConsume reports whether a consumer with caps can receive producerID.
	CanConsume(producerID string, caps RtpCapabilities) bool
	Close() error
	Closed() bool
}

type Transport interface {
	ID() string
	IceParameters() IceParameters
	IceCandidates() []IceCandidate
	DtlsParameters() DtlsParameters
	Connect(ctx context.Context, dtls DtlsParameters) error
	Produce(ctx context.Context, opts ProduceOptions) (Producer, error)
	Consume(ctx context.Context, opts ConsumeOptions) (Consumer, error)
	Close() error
	Closed() bool
}

type Producer interface {
	ID() string
	Kind() Kind
	RtpParameters() RtpParameters
	Close() error
	Closed() bool
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() Kind
	RtpParameters() RtpParameters
	Paused() bool
	Resume(ctx context.Context) error
	Close() error
	Closed() bool
}
