// Package domain contains identities, states and errors without logic.
package domain

import "github.com/google/uuid"

// ParticipantID is connection-scoped and stable for the connection's lifetime.
type ParticipantID string

// NewParticipantID is a tiny helper to avoid ad-hoc id generation in adapters.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

type ParticipantState int

const (
	StateJoined ParticipantState = iota
	StateCapabilitiesAnnounced
	StateProducing
	StateReady
	StateDisconnected
)

func (s ParticipantState) String() string {
	switch s {
	case StateJoined:
		return "joined"
	case StateCapabilitiesAnnounced:
		return "capabilitiesAnnounced"
	case StateProducing:
		return "producing"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
