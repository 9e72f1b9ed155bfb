// Package effects tracks timed item effects on players. Expiry is lazy:
// reads skip expired entries, and a periodic sweep reclaims them and
// reports what it removed so callers can announce the expiry.
package effects

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TargetRule constrains who an effect may land on, relative to the player
// who applied it.
type TargetRule int

const (
	// TargetAny places no constraint on the target.
	TargetAny TargetRule = iota
	// TargetSelf requires the target to be the applier.
	TargetSelf
	// TargetOpponent forbids applying the effect to oneself.
	TargetOpponent
)

// ErrInvalidTarget reports a target that violates the effect's target rule.
var ErrInvalidTarget = errors.New("effect target violates the target rule")

// Effect is one timed consequence of an item, attached to a single player
// in a single session.
type Effect struct {
	ID        uuid.UUID
	SessionID string
	TargetID  string
	Type      string
	AppliedBy string
	AppliedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the effect is still in force at the given time.
func (e *Effect) Active(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// RemainingSeconds reports how long the effect has left, floored at zero.
func (e *Effect) RemainingSeconds(now time.Time) float64 {
	remaining := e.ExpiresAt.Sub(now).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Scheduler holds every live effect, keyed by session and then by
// target+type so re-applying an effect replaces the previous timer
// instead of stacking.
type Scheduler struct {
	mu        sync.Mutex
	bySession map[string]map[string]*Effect

	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		bySession: make(map[string]map[string]*Effect),
		logger:    logger.With(slog.String("component", "effect_scheduler")),
	}
}

func effectKey(targetID, effectType string) string {
	return targetID + "_" + effectType
}

// Apply records a timed effect after checking the target rule. A
// non-positive duration is an instant item and never enters the
// scheduler; Apply returns nil for those. Applying an effect that is
// already active on the target replaces it, restarting the timer.
func (s *Scheduler) Apply(sessionID, targetID, effectType, appliedBy string, rule TargetRule, duration time.Duration) (*Effect, error) {
	switch rule {
	case TargetSelf:
		if targetID != appliedBy {
			return nil, ErrInvalidTarget
		}
	case TargetOpponent:
		if targetID == appliedBy {
			return nil, ErrInvalidTarget
		}
	}
	if duration <= 0 {
		return nil, nil
	}

	now := time.Now()
	effect := &Effect{
		ID:        uuid.New(),
		SessionID: sessionID,
		TargetID:  targetID,
		Type:      effectType,
		AppliedBy: appliedBy,
		AppliedAt: now,
		ExpiresAt: now.Add(duration),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.bySession[sessionID]
	if !ok {
		session = make(map[string]*Effect)
		s.bySession[sessionID] = session
	}
	key := effectKey(targetID, effectType)
	if _, replaced := session[key]; replaced {
		s.logger.Debug("Effect replaced",
			slog.String("sessionID", sessionID),
			slog.String("targetID", targetID),
			slog.String("type", effectType),
		)
	}
	session[key] = effect
	return effect, nil
}

// Active returns the effects currently in force on one target, removing
// any expired entries it walks past.
func (s *Scheduler) Active(sessionID, targetID string) []*Effect {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}

	now := time.Now()
	var active []*Effect
	for key, effect := range session {
		if !effect.Active(now) {
			delete(session, key)
			continue
		}
		if effect.TargetID == targetID {
			active = append(active, effect)
		}
	}
	if len(session) == 0 {
		delete(s.bySession, sessionID)
	}
	return active
}

// HasActive reports whether one specific effect is in force on a target.
func (s *Scheduler) HasActive(sessionID, targetID, effectType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.bySession[sessionID]
	if !ok {
		return false
	}
	key := effectKey(targetID, effectType)
	effect, ok := session[key]
	if !ok {
		return false
	}
	if !effect.Active(time.Now()) {
		delete(session, key)
		return false
	}
	return true
}

// Sweep removes every expired effect in one session and returns them so
// the caller can announce each expiry.
func (s *Scheduler) Sweep(sessionID string) []*Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(sessionID, time.Now())
}

// SweepAll sweeps every session at once. The maintenance loop calls this
// on a timer.
func (s *Scheduler) SweepAll() []*Effect {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed []*Effect
	for sessionID := range s.bySession {
		removed = append(removed, s.sweepLocked(sessionID, now)...)
	}
	return removed
}

func (s *Scheduler) sweepLocked(sessionID string, now time.Time) []*Effect {
	session, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}

	var removed []*Effect
	for key, effect := range session {
		if effect.Active(now) {
			continue
		}
		delete(session, key)
		removed = append(removed, effect)
		s.logger.Debug("Effect expired",
			slog.String("sessionID", sessionID),
			slog.String("targetID", effect.TargetID),
			slog.String("type", effect.Type),
		)
	}
	if len(session) == 0 {
		delete(s.bySession, sessionID)
	}
	return removed
}

// ClearSession drops every effect for a finished or aborted session.
func (s *Scheduler) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySession, sessionID)
}
