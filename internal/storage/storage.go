// Package storage defines the persistence surface for session configs and
// finished-game results.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that no record matched the lookup.
var ErrNotFound = errors.New("record not found")

// SessionConfig is the durable shape of a game session: everything needed
// to recreate its rules, none of its live state.
type SessionConfig struct {
	SessionID      string
	RoomID         string
	Mode           string
	Difficulty     string
	MaxPlayers     int
	PuzzleCount    int
	ItemsEnabled   bool
	QuantumEnabled bool
	CreatorID      string
	CreatedAt      time.Time
}

// LeaderboardEntry records one player's final result in one session.
// Written once when the session finishes, immutable afterward.
type LeaderboardEntry struct {
	SessionID        string
	PlayerID         string
	Username         string
	Mode             string
	Difficulty       string
	Score            int
	FinishRank       int
	PuzzlesComplete  int
	TotalAttempts    int
	TotalTimeSeconds float64
	RecordedAt       time.Time
}

// Store persists session configs and leaderboard results.
type Store interface {
	SaveSessionConfig(ctx context.Context, cfg SessionConfig) error
	// LoadSessionConfig returns ErrNotFound when the session id is unknown.
	LoadSessionConfig(ctx context.Context, sessionID string) (SessionConfig, error)
	// SaveLeaderboardEntries writes all entries atomically.
	SaveLeaderboardEntries(ctx context.Context, entries []LeaderboardEntry) error
	// TopEntries lists the best results for a mode and difficulty,
	// highest score first.
	TopEntries(ctx context.Context, mode, difficulty string, limit int) ([]LeaderboardEntry, error)
	Close() error
}
