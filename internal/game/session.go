package game

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
)

// SessionStatus is the match lifecycle. It only ever moves forward:
// waiting -> active -> finished, or -> cancelled from the first two.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusFinished  SessionStatus = "finished"
	StatusCancelled SessionStatus = "cancelled"
)

// PlayerStatus is one player's position in the match lifecycle.
// PlayerPlaying keeps the legacy wire value "active".
type PlayerStatus string

const (
	PlayerWaiting        PlayerStatus = "waiting"
	PlayerPlaying        PlayerStatus = "active"
	PlayerPuzzleComplete PlayerStatus = "mastermind_complete"
	PlayerFinished       PlayerStatus = "finished"
	PlayerDisconnected   PlayerStatus = "disconnected"
	PlayerEliminated     PlayerStatus = "eliminated"
)

// Supported game modes. Tournament play is recognized on the wire but
// not implemented, and is rejected at creation.
const (
	ModeMultiMastermind = "multi_mastermind"
	ModeBattleRoyale    = "battle_royale"
	modeTournament      = "tournament"
)

// Settings is the per-session configuration chosen at creation time.
type Settings struct {
	Mode           string
	Difficulty     string
	MaxPlayers     int
	PuzzleCount    int
	ItemsEnabled   bool
	QuantumEnabled bool
}

// validate checks the settings against the server-wide bounds.
func (s Settings) validate(cfg config.GameConfig) error {
	switch s.Mode {
	case ModeMultiMastermind, ModeBattleRoyale:
	case modeTournament:
		return Errorf(CodeValidation, "game mode %q is not supported", s.Mode)
	default:
		return Errorf(CodeValidation, "unknown game mode %q", s.Mode)
	}
	if _, ok := DifficultyByName(s.Difficulty); !ok {
		return Errorf(CodeValidation, "unknown difficulty %q", s.Difficulty)
	}
	if s.MaxPlayers < cfg.MinPlayers || s.MaxPlayers > cfg.MaxPlayers {
		return Errorf(CodeValidation, "maxPlayers must be between %d and %d, got %d", cfg.MinPlayers, cfg.MaxPlayers, s.MaxPlayers)
	}
	if s.PuzzleCount < 1 || s.PuzzleCount > cfg.MaxPuzzles {
		return Errorf(CodeValidation, "puzzleCount must be between 1 and %d, got %d", cfg.MaxPuzzles, s.PuzzleCount)
	}
	return nil
}

// Puzzle is one secret-guessing round. A non-empty TargetID pins the
// puzzle to a single player; everyone else skips it when advancing.
type Puzzle struct {
	Index       int
	Secret      []int
	Length      int
	PaletteSize int
	AttemptCap  int
	IsActive    bool
	TargetID    string
	CompletedAt time.Time
	CompletedBy string
}

// PlayerProgress is one identity's state within a session.
type PlayerProgress struct {
	Identity  state.Identity
	Status    PlayerStatus
	IsHost    bool
	JoinOrder int

	CurrentPuzzle    int
	PuzzlesCompleted int
	Score            int
	TotalAttempts    int

	// TotalTime accrues whenever a puzzle closes for this player.
	// TimeCredit is granted by time_bonus items and subtracted when
	// reporting.
	TotalTime  time.Duration
	TimeCredit time.Duration

	// Attempts counts attempts per puzzle index; Completed marks the
	// puzzles this player solved themselves; CapPenalty holds attempt-cap
	// reductions inflicted by reduce_attempts items.
	Attempts   map[int]int
	Completed  map[int]bool
	CapPenalty map[int]int

	Items []*Item

	FinishRank int
	FinishedAt time.Time

	PuzzleStartedAt time.Time
	// GraceDeadline is non-zero only while disconnected; rejoining
	// before it clears it, the sweep enforces it after.
	GraceDeadline time.Time
}

func newPlayerProgress(id state.Identity, joinOrder int, host bool) *PlayerProgress {
	return &PlayerProgress{
		Identity:   id,
		Status:     PlayerWaiting,
		IsHost:     host,
		JoinOrder:  joinOrder,
		Attempts:   make(map[int]int),
		Completed:  make(map[int]bool),
		CapPenalty: make(map[int]int),
	}
}

// live reports whether the player can still act or come back. Finished
// and eliminated players are out for good.
func (p *PlayerProgress) live() bool {
	return p.Status != PlayerFinished && p.Status != PlayerEliminated
}

// effectiveCap is the puzzle's attempt cap after malus penalties, never
// below one.
func (p *PlayerProgress) effectiveCap(pz *Puzzle) int {
	limit := pz.AttemptCap - p.CapPenalty[pz.Index]
	if limit < 1 {
		limit = 1
	}
	return limit
}

// unusedItem returns the oldest unused instance of an item type, or nil.
func (p *PlayerProgress) unusedItem(itemType string) *Item {
	for _, item := range p.Items {
		if item.Type == itemType && !item.Used {
			return item
		}
	}
	return nil
}

// playTime is the reported cumulative time after item credits.
func (p *PlayerProgress) playTime() time.Duration {
	t := p.TotalTime - p.TimeCredit
	if t < 0 {
		return 0
	}
	return t
}

// Session is one match: a room of players working through a puzzle
// sequence. The session id doubles as the room id. Every mutation runs
// under mu so state transitions for one session never interleave.
type Session struct {
	mu sync.Mutex

	ID         string
	Settings   Settings
	Difficulty Difficulty
	Status     SessionStatus
	CreatorID  string

	Puzzles []*Puzzle
	// ActivePuzzle is the frontier: the furthest index any player has
	// reached. Exactly one puzzle holds IsActive while the session runs.
	ActivePuzzle int

	Players map[string]*PlayerProgress

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	// finished counts players that have reached PlayerFinished; the next
	// finisher takes rank finished+1.
	finished int
}

// playersInJoinOrder returns the progress records sorted by arrival.
func (s *Session) playersInJoinOrder() []*PlayerProgress {
	players := make([]*PlayerProgress, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })
	return players
}

// nextPuzzleFor finds the index of the next puzzle this player must face
// after the given one, skipping puzzles pinned to someone else. Returns
// -1 when the player has run out of puzzles.
func (s *Session) nextPuzzleFor(p *PlayerProgress, after int) int {
	for i := after + 1; i < len(s.Puzzles); i++ {
		if t := s.Puzzles[i].TargetID; t == "" || t == p.Identity.ID {
			return i
		}
	}
	return -1
}

// advanceFrontier moves the single IsActive flag forward, never back.
func (s *Session) advanceFrontier(to int) {
	if to <= s.ActivePuzzle || to >= len(s.Puzzles) {
		return
	}
	s.Puzzles[s.ActivePuzzle].IsActive = false
	s.Puzzles[to].IsActive = true
	s.ActivePuzzle = to
}

// nextJoinOrder hands out strictly increasing arrival numbers, surviving
// removals of earlier players.
func (s *Session) nextJoinOrder() int {
	next := 0
	for _, p := range s.Players {
		if p.JoinOrder >= next {
			next = p.JoinOrder + 1
		}
	}
	return next
}

// hostCandidate picks the longest-standing member, used when the host
// leaves before the game starts.
func (s *Session) hostCandidate() *PlayerProgress {
	var best *PlayerProgress
	for _, p := range s.Players {
		if best == nil || p.JoinOrder < best.JoinOrder {
			best = p
		}
	}
	return best
}

// unsettledCount counts players the session is still waiting on: anyone
// neither finished nor eliminated.
func (s *Session) unsettledCount() int {
	n := 0
	for _, p := range s.Players {
		if p.live() {
			n++
		}
	}
	return n
}

const roomCodeLength = 6

// Ambiguous glyphs (0, O, 1, I) are left out so codes survive being read
// aloud between players.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newRoomCode() string {
	var b strings.Builder
	b.Grow(roomCodeLength)
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

// ValidRoomCode reports whether a string is a well-formed room code.
func ValidRoomCode(code string) bool {
	if len(code) != roomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.Contains(roomCodeAlphabet, string(code[i])) {
			return false
		}
	}
	return true
}

// generatePuzzles builds the ordered puzzle list for a new session with
// only the first one active. Secret colors are drawn from [1, palette].
func generatePuzzles(d Difficulty, count int) []*Puzzle {
	puzzles := make([]*Puzzle, count)
	for i := range puzzles {
		puzzles[i] = &Puzzle{
			Index:       i,
			Secret:      newSecret(d),
			Length:      d.Length,
			PaletteSize: d.PaletteSize,
			AttemptCap:  d.AttemptCap,
		}
	}
	if len(puzzles) > 0 {
		puzzles[0].IsActive = true
	}
	return puzzles
}

func newSecret(d Difficulty) []int {
	secret := make([]int, d.Length)
	for i := range secret {
		secret[i] = 1 + rand.Intn(d.PaletteSize)
	}
	return secret
}

// validateGuess checks shape and palette range before the oracle sees
// the guess.
func validateGuess(guess []int, pz *Puzzle) error {
	if len(guess) != pz.Length {
		return Errorf(CodeValidation, "guess must have %d colors, got %d", pz.Length, len(guess))
	}
	for _, color := range guess {
		if color < 1 || color > pz.PaletteSize {
			return Errorf(CodeValidation, "color %d is outside the palette 1..%d", color, pz.PaletteSize)
		}
	}
	return nil
}
