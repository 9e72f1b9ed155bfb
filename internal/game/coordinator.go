// Package game implements the session coordinator: the per-match state
// machine that seats players, sequences puzzles, scores attempts, applies
// item effects, ranks finishers, and announces every transition.
package game

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/effects"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/storage"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
	"github.com/google/uuid"
)

// Notifier is the fan-out surface session events are published on.
// Implementations must never block beyond enqueueing.
type Notifier interface {
	Room(roomID string, event protocol.EventType, data any)
	RoomExcept(roomID string, exclude uuid.UUID, event protocol.EventType, data any)
	RoomExceptIdentity(roomID, identityID string, event protocol.EventType, data any)
	Identity(identityID string, event protocol.EventType, data any)
}

// Coordinator owns every live session. Each session serializes its own
// mutations behind its lock; separate sessions proceed fully in parallel.
type Coordinator struct {
	cfg       *config.Config
	state     state.Manager
	scheduler *effects.Scheduler
	store     storage.Store
	notify    Notifier
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewCoordinator(cfg *config.Config, manager state.Manager, scheduler *effects.Scheduler, store storage.Store, notifier Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		state:     manager,
		scheduler: scheduler,
		store:     store,
		notify:    notifier,
		logger:    logger.With(slog.String("component", "coordinator")),
		sessions:  make(map[string]*Session),
	}
}

// sessionByID resolves a room code to its session without holding the
// session lock.
func (c *Coordinator) sessionByID(roomID string) (*Session, error) {
	if !ValidRoomCode(roomID) {
		return nil, Errorf(CodeValidation, "malformed room code %q", roomID)
	}
	c.mu.RLock()
	s, ok := c.sessions[roomID]
	c.mu.RUnlock()
	if !ok {
		return nil, Errorf(CodeNotFound, "no session for room %s", roomID)
	}
	return s, nil
}

func (c *Coordinator) removeSession(roomID string) {
	c.mu.Lock()
	delete(c.sessions, roomID)
	c.mu.Unlock()
}

func (c *Coordinator) snapshotSessions() []*Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// roomEmpty reports whether a room has no members left (or is gone).
func (c *Coordinator) roomEmpty(roomID string) bool {
	conns, err := c.state.RoomConnections(roomID)
	return err != nil || len(conns) == 0
}

// identityInRoom reports whether any connection of an identity is still
// a member of the room.
func (c *Coordinator) identityInRoom(roomID, identityID string) bool {
	conns, err := c.state.RoomConnections(roomID)
	if err != nil {
		return false
	}
	for _, conn := range conns {
		if conn.Identity != nil && conn.Identity.ID == identityID {
			return true
		}
	}
	return false
}

// reapOverdue settles players whose disconnect grace has run out. Before
// the game starts they are simply removed; mid-game they are eliminated.
// Runs at the top of every session mutation and from the periodic sweep,
// always under the session lock.
func (c *Coordinator) reapOverdue(ctx context.Context, s *Session, now time.Time) {
	if s.Status != StatusWaiting && s.Status != StatusActive {
		return
	}
	for _, p := range s.playersInJoinOrder() {
		if p.Status != PlayerDisconnected || p.GraceDeadline.IsZero() || now.Before(p.GraceDeadline) {
			continue
		}
		left := &protocol.PlayerLeftData{
			RoomID:   s.ID,
			PlayerID: p.Identity.ID,
			Username: p.Identity.Username,
			Reason:   "timeout",
		}
		if s.Status == StatusWaiting {
			delete(s.Players, p.Identity.ID)
			if p.IsHost {
				if heir := s.hostCandidate(); heir != nil {
					heir.IsHost = true
				}
			}
		} else {
			p.Status = PlayerEliminated
			p.GraceDeadline = time.Time{}
		}
		c.logger.Info("Player grace expired",
			slog.String("sessionID", s.ID),
			slog.String("playerID", p.Identity.ID),
		)
		c.notify.Room(s.ID, protocol.EvtPlayerLeft, left)
	}
	c.checkSessionEnd(ctx, s, now)
}

// checkSessionEnd finishes the session once nobody is left in flight. In
// battle royale the last player still standing is crowned first.
func (c *Coordinator) checkSessionEnd(ctx context.Context, s *Session, now time.Time) {
	if s.Status != StatusActive {
		return
	}
	if s.Settings.Mode == ModeBattleRoyale && len(s.Players) > 1 {
		var sole *PlayerProgress
		live := 0
		for _, p := range s.Players {
			if p.live() {
				live++
				sole = p
			}
		}
		if live == 1 && sole.Status == PlayerPlaying {
			c.finishPlayer(s, sole, now)
		}
	}
	if s.unsettledCount() > 0 {
		return
	}
	c.finishSession(ctx, s, now)
}

// finishPlayer moves a player to FINISHED and hands out the next rank.
// Ranks are assigned once and never reshuffled.
func (c *Coordinator) finishPlayer(s *Session, p *PlayerProgress, now time.Time) {
	p.Status = PlayerFinished
	s.finished++
	p.FinishRank = s.finished
	p.FinishedAt = now
	p.GraceDeadline = time.Time{}
}

// finishSession closes the match: ranks stragglers behind the finishers,
// clears outstanding effects, persists the leaderboard, and announces
// the final standings. The session record stays queryable until its room
// empties.
func (c *Coordinator) finishSession(ctx context.Context, s *Session, now time.Time) {
	s.Status = StatusFinished
	s.FinishedAt = now

	var stragglers []*PlayerProgress
	for _, p := range s.Players {
		if p.FinishRank == 0 {
			stragglers = append(stragglers, p)
		}
	}
	sort.SliceStable(stragglers, func(i, j int) bool { return standingLess(stragglers[i], stragglers[j]) })
	for _, p := range stragglers {
		s.finished++
		p.FinishRank = s.finished
	}

	standings := sessionStandings(s)
	winnerID := ""
	if len(standings) > 0 {
		winnerID = standings[0].PlayerID
	}

	c.scheduler.ClearSession(s.ID)
	c.persistResults(ctx, s, now)

	c.notify.Room(s.ID, protocol.EvtGameFinished, &protocol.GameFinishedData{
		SessionID:       s.ID,
		WinnerID:        winnerID,
		Standings:       standings,
		DurationSeconds: now.Sub(s.StartedAt).Seconds(),
	})
	c.logger.Info("Game finished",
		slog.String("sessionID", s.ID),
		slog.String("winnerID", winnerID),
		slog.Int("players", len(s.Players)),
	)
}

// standingLess orders players best-first: score, then earlier finish,
// then arrival.
func standingLess(a, b *PlayerProgress) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	af, bf := a.FinishedAt, b.FinishedAt
	switch {
	case af.IsZero() && bf.IsZero():
		return a.JoinOrder < b.JoinOrder
	case af.IsZero():
		return false
	case bf.IsZero():
		return true
	case !af.Equal(bf):
		return af.Before(bf)
	}
	return a.JoinOrder < b.JoinOrder
}

func sessionStandings(s *Session) []protocol.StandingEntry {
	players := s.playersInJoinOrder()
	sort.SliceStable(players, func(i, j int) bool { return standingLess(players[i], players[j]) })
	entries := make([]protocol.StandingEntry, len(players))
	for i, p := range players {
		entries[i] = protocol.StandingEntry{
			Position:         i + 1,
			PlayerID:         p.Identity.ID,
			Username:         p.Identity.Username,
			Score:            p.Score,
			PuzzlesCompleted: p.PuzzlesCompleted,
			FinishRank:       p.FinishRank,
			Status:           string(p.Status),
			IsWinner:         i == 0,
		}
	}
	return entries
}

// persistResults writes one leaderboard entry per player. A storage
// failure is logged and swallowed: the game result already went out and
// must not be retracted over a persistence hiccup.
func (c *Coordinator) persistResults(ctx context.Context, s *Session, now time.Time) {
	entries := make([]storage.LeaderboardEntry, 0, len(s.Players))
	for _, p := range s.playersInJoinOrder() {
		entries = append(entries, storage.LeaderboardEntry{
			SessionID:        s.ID,
			PlayerID:         p.Identity.ID,
			Username:         p.Identity.Username,
			Mode:             s.Settings.Mode,
			Difficulty:       s.Settings.Difficulty,
			Score:            p.Score,
			FinishRank:       p.FinishRank,
			PuzzlesComplete:  p.PuzzlesCompleted,
			TotalAttempts:    p.TotalAttempts,
			TotalTimeSeconds: p.playTime().Seconds(),
			RecordedAt:       now,
		})
	}
	if err := c.store.SaveLeaderboardEntries(ctx, entries); err != nil {
		c.logger.Error("Failed to persist leaderboard entries",
			slog.String("sessionID", s.ID),
			slog.Any("error", err),
		)
	}
}

// cancelSession aborts a session that never reached a result. No event
// goes out: cancellation only happens once the room is abandoned.
func (c *Coordinator) cancelSession(s *Session, reason string) {
	s.Status = StatusCancelled
	c.scheduler.ClearSession(s.ID)
	c.state.DeleteRoom(s.ID)
	c.removeSession(s.ID)
	c.logger.Info("Session cancelled",
		slog.String("sessionID", s.ID),
		slog.String("reason", reason),
	)
}

// dropSession discards a terminal session once its room has emptied.
func (c *Coordinator) dropSession(s *Session) {
	c.scheduler.ClearSession(s.ID)
	c.state.DeleteRoom(s.ID)
	c.removeSession(s.ID)
	c.logger.Debug("Session record dropped", slog.String("sessionID", s.ID))
}

// ConnectionClosed reacts to a connection being deregistered: for every
// session room it was in, the player turns DISCONNECTED with a grace
// deadline unless another of their devices is still present. Abandoned
// sessions are torn down on the spot.
func (c *Coordinator) ConnectionClosed(removed *state.Connection) {
	if removed == nil || removed.Identity == nil {
		return
	}
	now := time.Now()
	for roomID := range removed.Rooms {
		s, err := c.sessionByID(roomID)
		if err != nil {
			continue
		}
		c.connectionLeftRoom(s, removed.Identity.ID, now)
	}
}

func (c *Coordinator) connectionLeftRoom(s *Session, identityID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status == StatusFinished || s.Status == StatusCancelled {
		if c.roomEmpty(s.ID) {
			c.dropSession(s)
		}
		return
	}

	if !c.identityInRoom(s.ID, identityID) {
		if p, ok := s.Players[identityID]; ok && p.live() && p.Status != PlayerDisconnected {
			p.Status = PlayerDisconnected
			p.GraceDeadline = now.Add(c.cfg.Game.DisconnectGrace)
			c.notify.Room(s.ID, protocol.EvtPlayerLeft, &protocol.PlayerLeftData{
				RoomID:   s.ID,
				PlayerID: identityID,
				Username: p.Identity.Username,
				Reason:   "disconnected",
			})
			c.logger.Info("Player disconnected",
				slog.String("sessionID", s.ID),
				slog.String("playerID", identityID),
			)
		}
	}

	if c.roomEmpty(s.ID) {
		c.cancelSession(s, "room abandoned")
	}
}

// Sweep is the periodic maintenance pass: it settles overdue disconnect
// graces, tears down abandoned sessions, and announces expired effects.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) {
	for _, s := range c.snapshotSessions() {
		s.mu.Lock()
		c.reapOverdue(ctx, s, now)
		switch s.Status {
		case StatusWaiting, StatusActive:
			if c.roomEmpty(s.ID) {
				c.cancelSession(s, "room abandoned")
			}
		default:
			if c.roomEmpty(s.ID) {
				c.dropSession(s)
			}
		}
		s.mu.Unlock()
	}

	for _, effect := range c.scheduler.SweepAll() {
		c.notify.Room(effect.SessionID, protocol.EvtEffectExpired, &protocol.EffectExpiredData{
			SessionID: effect.SessionID,
			EffectID:  effect.ID.String(),
			ItemType:  effect.Type,
			TargetID:  effect.TargetID,
		})
	}
}
