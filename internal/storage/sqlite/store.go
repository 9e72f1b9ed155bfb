// Package sqlite implements the storage interfaces over a single SQLite
// file, which is all the persistence a single-process game server needs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/storage"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for game state.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

const schema = `
CREATE TABLE IF NOT EXISTS session_configs (
	session_id      TEXT PRIMARY KEY,
	room_id         TEXT NOT NULL,
	mode            TEXT NOT NULL,
	difficulty      TEXT NOT NULL,
	max_players     INTEGER NOT NULL,
	puzzle_count    INTEGER NOT NULL,
	items_enabled   INTEGER NOT NULL,
	quantum_enabled INTEGER NOT NULL,
	creator_id      TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS leaderboard_entries (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id         TEXT NOT NULL,
	player_id          TEXT NOT NULL,
	username           TEXT NOT NULL,
	mode               TEXT NOT NULL,
	difficulty         TEXT NOT NULL,
	score              INTEGER NOT NULL,
	finish_rank        INTEGER NOT NULL,
	puzzles_complete   INTEGER NOT NULL,
	total_attempts     INTEGER NOT NULL,
	total_time_seconds REAL NOT NULL,
	recorded_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_mode_score
	ON leaderboard_entries (mode, difficulty, score DESC);
`

// Open opens the game SQLite store at the provided path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveSessionConfig upserts one session config row.
func (s *Store) SaveSessionConfig(ctx context.Context, cfg storage.SessionConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO session_configs (
	session_id, room_id, mode, difficulty, max_players, puzzle_count,
	items_enabled, quantum_enabled, creator_id, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	room_id = excluded.room_id,
	mode = excluded.mode,
	difficulty = excluded.difficulty,
	max_players = excluded.max_players,
	puzzle_count = excluded.puzzle_count,
	items_enabled = excluded.items_enabled,
	quantum_enabled = excluded.quantum_enabled,
	creator_id = excluded.creator_id
`,
		cfg.SessionID,
		cfg.RoomID,
		cfg.Mode,
		cfg.Difficulty,
		cfg.MaxPlayers,
		cfg.PuzzleCount,
		cfg.ItemsEnabled,
		cfg.QuantumEnabled,
		cfg.CreatorID,
		toMillis(cfg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save session config: %w", err)
	}
	return nil
}

// LoadSessionConfig loads one session config by id.
func (s *Store) LoadSessionConfig(ctx context.Context, sessionID string) (storage.SessionConfig, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionConfig{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionConfig{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.SessionConfig{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, room_id, mode, difficulty, max_players, puzzle_count,
	items_enabled, quantum_enabled, creator_id, created_at
FROM session_configs
WHERE session_id = ?
`, sessionID)

	var cfg storage.SessionConfig
	var createdAt int64
	err := row.Scan(
		&cfg.SessionID,
		&cfg.RoomID,
		&cfg.Mode,
		&cfg.Difficulty,
		&cfg.MaxPlayers,
		&cfg.PuzzleCount,
		&cfg.ItemsEnabled,
		&cfg.QuantumEnabled,
		&cfg.CreatorID,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionConfig{}, storage.ErrNotFound
		}
		return storage.SessionConfig{}, fmt.Errorf("load session config: %w", err)
	}
	cfg.CreatedAt = fromMillis(createdAt)
	return cfg, nil
}

// SaveLeaderboardEntries writes every entry in one transaction.
func (s *Store) SaveLeaderboardEntries(ctx context.Context, entries []storage.LeaderboardEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin leaderboard write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback leaderboard write: %v", cause, rollbackErr)
		}
		return cause
	}

	for _, entry := range entries {
		if strings.TrimSpace(entry.SessionID) == "" || strings.TrimSpace(entry.PlayerID) == "" {
			return rollbackWith(fmt.Errorf("leaderboard entry needs session and player ids"))
		}
		recordedAt := entry.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO leaderboard_entries (
	session_id, player_id, username, mode, difficulty, score, finish_rank,
	puzzles_complete, total_attempts, total_time_seconds, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			entry.SessionID,
			entry.PlayerID,
			entry.Username,
			entry.Mode,
			entry.Difficulty,
			entry.Score,
			entry.FinishRank,
			entry.PuzzlesComplete,
			entry.TotalAttempts,
			entry.TotalTimeSeconds,
			toMillis(recordedAt),
		)
		if err != nil {
			return rollbackWith(fmt.Errorf("insert leaderboard entry: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leaderboard write: %w", err)
	}
	return nil
}

// TopEntries lists the best results for a mode and difficulty.
func (s *Store) TopEntries(ctx context.Context, mode, difficulty string, limit int) ([]storage.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, player_id, username, mode, difficulty, score, finish_rank,
	puzzles_complete, total_attempts, total_time_seconds, recorded_at
FROM leaderboard_entries
WHERE mode = ? AND difficulty = ?
ORDER BY score DESC, recorded_at ASC
LIMIT ?
`, mode, difficulty, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []storage.LeaderboardEntry
	for rows.Next() {
		var entry storage.LeaderboardEntry
		var recordedAt int64
		if err := rows.Scan(
			&entry.SessionID,
			&entry.PlayerID,
			&entry.Username,
			&entry.Mode,
			&entry.Difficulty,
			&entry.Score,
			&entry.FinishRank,
			&entry.PuzzlesComplete,
			&entry.TotalAttempts,
			&entry.TotalTimeSeconds,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entry.RecordedAt = fromMillis(recordedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard entries: %w", err)
	}
	return entries, nil
}
