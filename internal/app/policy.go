package app

import (
	"sync"

	"github.com/dkeye/Conference/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose push queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member domain.ParticipantID) BackpressureAction
}

// SimplePolicy kicks on the first missed push.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, domain.ParticipantID) BackpressureAction {
	return KickMember
}

// StrikePolicy drops pushes to a slow member until it has missed limit of
// them, then kicks it.
type StrikePolicy struct {
	limit int

	mu     sync.Mutex
	misses map[domain.ParticipantID]int
}

func NewStrikePolicy(limit int) *StrikePolicy {
	return &StrikePolicy{limit: limit, misses: make(map[domain.ParticipantID]int)}
}

func (p *StrikePolicy) OnBackPressure(_ domain.RoomID, member domain.ParticipantID) BackpressureAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.misses[member]++
	if p.misses[member] >= p.limit {
		delete(p.misses, member)
		return KickMember
	}
	return DropFrame
}

// Forget clears the strikes of a member that left.
func (p *StrikePolicy) Forget(member domain.ParticipantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.misses, member)
}
