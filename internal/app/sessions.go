package app

import (
	"context"
	"sync"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Room   domain.RoomID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Sessions maps participant ids to their signaling connections so pushes can
// reach other members of a room. It holds no room or media state.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[domain.ParticipantID]*sessionEntry),
	}
}

func (s *Sessions) BindSignal(pid domain.ParticipantID, sig core.SignalConnection, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[pid] = &sessionEntry{Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.sessions").Str("participant", string(pid)).Msg("bound signal")
}

func (s *Sessions) Signal(pid domain.ParticipantID) (core.SignalConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[pid]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (s *Sessions) Unbind(pid domain.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, pid)
	log.Info().Str("module", "app.sessions").Str("participant", string(pid)).Msg("unbind session")
}

func (s *Sessions) RoomOf(pid domain.ParticipantID) (domain.RoomID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[pid]
	if !ok || entry.Room == "" {
		return "", false
	}
	return entry.Room, true
}

func (s *Sessions) UpdateRoom(pid domain.ParticipantID, room domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[pid]
	if !ok {
		return false
	}
	entry.Room = room
	log.Info().Str("module", "app.sessions").Str("participant", string(pid)).Str("room", string(room)).Msg("updated room")
	return true
}

func (s *Sessions) ClearRoom(pid domain.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[pid]; ok {
		entry.Room = ""
	}
}

// Cancel ends the session's context; the connection loop then disconnects.
func (s *Sessions) Cancel(pid domain.ParticipantID) bool {
	s.mu.RLock()
	e, ok := s.sessions[pid]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("participant", string(pid)).Msg("canceled session")
	return true
}
