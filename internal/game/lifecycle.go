package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/storage"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
)

// Create builds a session in WAITING with a fresh room code and the
// creator seated as host. The creator's connections still attach through
// join_room; Create only reserves the seat. The returned snapshot
// carries the room code.
func (c *Coordinator) Create(ctx context.Context, settings Settings, creator state.Identity) (*protocol.GameStateData, error) {
	if err := settings.validate(c.cfg.Game); err != nil {
		return nil, err
	}
	difficulty, _ := DifficultyByName(settings.Difficulty)
	now := time.Now()

	c.mu.Lock()
	var code string
	for {
		code = newRoomCode()
		if _, taken := c.sessions[code]; !taken {
			break
		}
	}
	s := &Session{
		ID:         code,
		Settings:   settings,
		Difficulty: difficulty,
		Status:     StatusWaiting,
		CreatorID:  creator.ID,
		Puzzles:    generatePuzzles(difficulty, settings.PuzzleCount),
		Players:    map[string]*PlayerProgress{creator.ID: newPlayerProgress(creator, 0, true)},
		CreatedAt:  now,
	}
	c.sessions[code] = s
	c.mu.Unlock()

	if _, err := c.state.CreateRoom(code, settings.MaxPlayers); err != nil {
		c.removeSession(code)
		return nil, fmt.Errorf("creating room %s: %w", code, err)
	}

	if err := c.store.SaveSessionConfig(ctx, storage.SessionConfig{
		SessionID:      code,
		RoomID:         code,
		Mode:           settings.Mode,
		Difficulty:     settings.Difficulty,
		MaxPlayers:     settings.MaxPlayers,
		PuzzleCount:    settings.PuzzleCount,
		ItemsEnabled:   settings.ItemsEnabled,
		QuantumEnabled: settings.QuantumEnabled,
		CreatorID:      creator.ID,
		CreatedAt:      now,
	}); err != nil {
		c.state.DeleteRoom(code)
		c.removeSession(code)
		return nil, fmt.Errorf("persisting session config: %w", err)
	}

	c.logger.Info("Session created",
		slog.String("sessionID", code),
		slog.String("mode", settings.Mode),
		slog.String("difficulty", settings.Difficulty),
		slog.String("creatorID", creator.ID),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	return buildGameState(c.scheduler, s, creator.ID), nil
}

// CreateFromStored starts a fresh session reusing the settings of a
// stored one: a rematch with new puzzles under a new room code.
func (c *Coordinator) CreateFromStored(ctx context.Context, sessionID string, creator state.Identity) (*protocol.GameStateData, error) {
	stored, err := c.store.LoadSessionConfig(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, Errorf(CodeNotFound, "no stored session %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session config: %w", err)
	}
	return c.Create(ctx, Settings{
		Mode:           stored.Mode,
		Difficulty:     stored.Difficulty,
		MaxPlayers:     stored.MaxPlayers,
		PuzzleCount:    stored.PuzzleCount,
		ItemsEnabled:   stored.ItemsEnabled,
		QuantumEnabled: stored.QuantumEnabled,
	}, creator)
}

// Join admits a connection to a session room and returns the snapshot
// the caller should grant it. A player the session already knows (the
// creator, a second device, or someone inside the disconnect grace) is
// reattached without ceremony; a genuinely new player needs a free seat
// and a session still in WAITING.
func (c *Coordinator) Join(ctx context.Context, roomID string, conn *state.Connection) (*protocol.GameStateData, error) {
	if conn.Identity == nil {
		return nil, Errorf(CodeAuth, "authentication required to join a room")
	}
	id := *conn.Identity
	s, err := c.sessionByID(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.reapOverdue(ctx, s, now)

	if s.Status == StatusFinished || s.Status == StatusCancelled {
		return nil, Errorf(CodeState, "session %s is over", roomID)
	}

	p, known := s.Players[id.ID]
	if !known {
		if s.Status != StatusWaiting {
			return nil, Errorf(CodeState, "game in room %s has already started", roomID)
		}
		if len(s.Players) >= s.Settings.MaxPlayers {
			return nil, Errorf(CodeCapacity, "room %s is full", roomID)
		}
	}

	if err := c.state.Join(roomID, conn.ID); err != nil {
		switch {
		case errors.Is(err, state.ErrRoomFull):
			return nil, Errorf(CodeCapacity, "room %s is full", roomID)
		case errors.Is(err, state.ErrRoomNotFound):
			return nil, Errorf(CodeNotFound, "room %s is gone", roomID)
		default:
			return nil, fmt.Errorf("joining room %s: %w", roomID, err)
		}
	}

	switch {
	case !known:
		p = newPlayerProgress(id, s.nextJoinOrder(), false)
		s.Players[id.ID] = p
		c.notify.RoomExcept(roomID, conn.ID, protocol.EvtPlayerJoined, &protocol.PlayerJoinedData{
			RoomID:      roomID,
			PlayerID:    id.ID,
			Username:    id.Username,
			PlayerCount: len(s.Players),
		})
		c.logger.Info("Player joined",
			slog.String("sessionID", roomID),
			slog.String("playerID", id.ID),
			slog.Int("players", len(s.Players)),
		)
	case p.Status == PlayerDisconnected:
		// Back inside the grace window: restore the player where the
		// session currently is.
		p.GraceDeadline = time.Time{}
		if s.Status == StatusActive {
			p.Status = PlayerPlaying
		} else {
			p.Status = PlayerWaiting
		}
		c.notify.RoomExcept(roomID, conn.ID, protocol.EvtPlayerJoined, &protocol.PlayerJoinedData{
			RoomID:      roomID,
			PlayerID:    id.ID,
			Username:    id.Username,
			PlayerCount: len(s.Players),
		})
		c.logger.Info("Player rejoined",
			slog.String("sessionID", roomID),
			slog.String("playerID", id.ID),
		)
	}

	return buildGameState(c.scheduler, s, id.ID), nil
}

// Leave detaches one connection from the room. Session membership only
// changes when the identity's last connection in that room goes: before
// the start the seat is released, mid-game the player turns DISCONNECTED
// with the usual grace deadline.
func (c *Coordinator) Leave(ctx context.Context, roomID string, conn *state.Connection) error {
	if conn.Identity == nil {
		return Errorf(CodeAuth, "authentication required to leave a room")
	}
	identityID := conn.Identity.ID
	s, err := c.sessionByID(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.reapOverdue(ctx, s, now)

	if err := c.state.Leave(roomID, conn.ID); err != nil && !errors.Is(err, state.ErrRoomNotFound) {
		return fmt.Errorf("leaving room %s: %w", roomID, err)
	}

	if p, ok := s.Players[identityID]; ok && !c.identityInRoom(roomID, identityID) {
		left := &protocol.PlayerLeftData{
			RoomID:   roomID,
			PlayerID: identityID,
			Username: p.Identity.Username,
			Reason:   "left",
		}
		switch {
		case s.Status == StatusWaiting:
			delete(s.Players, identityID)
			if p.IsHost {
				if heir := s.hostCandidate(); heir != nil {
					heir.IsHost = true
				}
			}
			c.notify.Room(roomID, protocol.EvtPlayerLeft, left)
		case s.Status == StatusActive && p.live() && p.Status != PlayerDisconnected:
			p.Status = PlayerDisconnected
			p.GraceDeadline = now.Add(c.cfg.Game.DisconnectGrace)
			c.notify.Room(roomID, protocol.EvtPlayerLeft, left)
		}
		c.logger.Info("Player left",
			slog.String("sessionID", roomID),
			slog.String("playerID", identityID),
		)
	}

	if c.roomEmpty(roomID) {
		switch s.Status {
		case StatusWaiting, StatusActive:
			c.cancelSession(s, "room abandoned")
		default:
			c.dropSession(s)
		}
	}
	return nil
}

// Start flips a waiting session to ACTIVE. Only the host may start, and
// only with enough connected players seated.
func (c *Coordinator) Start(ctx context.Context, roomID, identityID string) error {
	s, err := c.sessionByID(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.reapOverdue(ctx, s, now)

	if s.Status != StatusWaiting {
		return Errorf(CodeState, "session %s is not waiting to start", roomID)
	}
	p, ok := s.Players[identityID]
	if !ok {
		return Errorf(CodeState, "you are not part of session %s", roomID)
	}
	if !p.IsHost {
		return Errorf(CodeState, "only the host can start the game")
	}
	ready := 0
	for _, q := range s.Players {
		if q.Status == PlayerWaiting {
			ready++
		}
	}
	if ready < c.cfg.Game.MinPlayers {
		return Errorf(CodeState, "need at least %d connected players to start, have %d", c.cfg.Game.MinPlayers, ready)
	}

	s.Status = StatusActive
	s.StartedAt = now
	for _, q := range s.Players {
		q.PuzzleStartedAt = now
		if q.Status == PlayerWaiting {
			q.Status = PlayerPlaying
		}
	}

	c.notify.Room(roomID, protocol.EvtGameStarted, &protocol.GameStartedData{
		SessionID:      roomID,
		Mode:           s.Settings.Mode,
		Difficulty:     s.Settings.Difficulty,
		TotalPuzzles:   len(s.Puzzles),
		SequenceLength: s.Difficulty.Length,
		PaletteSize:    s.Difficulty.PaletteSize,
		AttemptCap:     s.Difficulty.AttemptCap,
	})
	c.logger.Info("Game started",
		slog.String("sessionID", roomID),
		slog.String("mode", s.Settings.Mode),
		slog.Int("players", len(s.Players)),
	)
	return nil
}
