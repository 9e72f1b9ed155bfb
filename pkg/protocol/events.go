package protocol

// EventType enumerates every server-emitted event.
type EventType string

const (
	EvtConnectionEstablished EventType = "connection_established"
	EvtAuthenticationSuccess EventType = "authentication_success"
	EvtAuthenticationFailed  EventType = "authentication_failed"
	EvtPlayerJoined          EventType = "player_joined"
	EvtPlayerLeft            EventType = "player_left"
	EvtGameStarted           EventType = "game_started"
	EvtGameFinished          EventType = "game_finished"
	EvtAttemptResult         EventType = "attempt_result"
	EvtAttemptMade           EventType = "attempt_made"
	EvtMastermindComplete    EventType = "mastermind_complete"
	EvtItemUsed              EventType = "item_used"
	EvtEffectApplied         EventType = "effect_applied"
	EvtEffectExpired         EventType = "effect_expired"
	EvtChatBroadcast         EventType = "chat_broadcast"
	EvtGameState             EventType = "game_state"
	EvtHeartbeat             EventType = "heartbeat"
	EvtError                 EventType = "error"
)

type ConnectionEstablishedData struct {
	ConnectionID string `json:"connection_id"`
}

type AuthenticationSuccessData struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

type AuthenticationFailedData struct {
	Reason string `json:"reason"`
}

type PlayerJoinedData struct {
	RoomID      string `json:"room_id"`
	PlayerID    string `json:"player_id"`
	Username    string `json:"username"`
	PlayerCount int    `json:"player_count"`
}

// PlayerLeftData covers both voluntary leaves and disconnects; Reason is
// "left" or "disconnected".
type PlayerLeftData struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

type GameStartedData struct {
	SessionID      string `json:"session_id"`
	Mode           string `json:"mode"`
	Difficulty     string `json:"difficulty"`
	TotalPuzzles   int    `json:"total_puzzles"`
	SequenceLength int    `json:"sequence_length"`
	PaletteSize    int    `json:"palette_size"`
	AttemptCap     int    `json:"attempt_cap"`
}

type StandingEntry struct {
	Position         int    `json:"position"`
	PlayerID         string `json:"player_id"`
	Username         string `json:"username"`
	Score            int    `json:"score"`
	PuzzlesCompleted int    `json:"puzzles_completed"`
	FinishRank       int    `json:"finish_rank,omitempty"`
	Status           string `json:"status"`
	IsWinner         bool   `json:"is_winner"`
}

type GameFinishedData struct {
	SessionID       string          `json:"session_id"`
	WinnerID        string          `json:"winner_id,omitempty"`
	Standings       []StandingEntry `json:"final_standings"`
	DurationSeconds float64         `json:"duration_seconds"`
}

// AttemptResultData goes to the acting player only and carries the full
// scoring breakdown, including the guess itself.
type AttemptResultData struct {
	SessionID         string    `json:"session_id"`
	PuzzleIndex       int       `json:"puzzle_index"`
	AttemptNumber     int       `json:"attempt_number"`
	Guess             []int     `json:"guess"`
	ExactMatches      int       `json:"exact_matches"`
	PositionMatches   int       `json:"position_matches"`
	IsWinning         bool      `json:"is_winning"`
	Score             int       `json:"score"`
	TotalScore        int       `json:"total_score"`
	RemainingAttempts int       `json:"remaining_attempts"`
	PlayerStatus      string    `json:"player_status"`
	Confidence        []float64 `json:"confidence,omitempty"`
}

// AttemptMadeData is the redacted room-wide counterpart: no guess
// contents, no match counts.
type AttemptMadeData struct {
	SessionID     string `json:"session_id"`
	PlayerID      string `json:"player_id"`
	Username      string `json:"username"`
	PuzzleIndex   int    `json:"puzzle_index"`
	AttemptNumber int    `json:"attempt_number"`
	IsWinning     bool   `json:"is_winning"`
}

type ItemGrant struct {
	ItemType string `json:"item_type"`
	Rarity   string `json:"rarity"`
}

type MastermindCompleteData struct {
	SessionID         string      `json:"session_id"`
	PlayerID          string      `json:"player_id"`
	Username          string      `json:"username"`
	PuzzleIndex       int         `json:"puzzle_index"`
	AttemptsUsed      int         `json:"attempts_used"`
	TotalScore        int         `json:"total_score"`
	CompletionSeconds float64     `json:"completion_seconds"`
	ItemsObtained     []ItemGrant `json:"items_obtained,omitempty"`
	PlayerStatus      string      `json:"player_status"`
}

// HintInfo reveals one secret position; only ever sent to the player who
// used the extra_hint item.
type HintInfo struct {
	Position int `json:"position"`
	Color    int `json:"color"`
}

type ItemUsedData struct {
	SessionID string    `json:"session_id"`
	PlayerID  string    `json:"player_id"`
	Username  string    `json:"username"`
	ItemType  string    `json:"item_type"`
	Rarity    string    `json:"rarity"`
	Targets   []string  `json:"targets,omitempty"`
	Hint      *HintInfo `json:"hint,omitempty"`
}

type EffectAppliedData struct {
	SessionID       string  `json:"session_id"`
	EffectID        string  `json:"effect_id"`
	ItemType        string  `json:"item_type"`
	SourceID        string  `json:"source_id"`
	TargetID        string  `json:"target_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	ExpiresAt       float64 `json:"expires_at"`
}

type EffectExpiredData struct {
	SessionID string `json:"session_id"`
	EffectID  string `json:"effect_id"`
	ItemType  string `json:"item_type"`
	TargetID  string `json:"target_id"`
}

type ChatBroadcastData struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

type PuzzleState struct {
	Index       int     `json:"index"`
	Length      int     `json:"length"`
	PaletteSize int     `json:"palette_size"`
	AttemptCap  int     `json:"attempt_cap"`
	IsActive    bool    `json:"is_active"`
	Completed   bool    `json:"completed"`
	CompletedAt float64 `json:"completed_at,omitempty"`
	TargetID    string  `json:"target_id,omitempty"`
	Secret      []int   `json:"secret,omitempty"`
}

type ItemState struct {
	ItemType string `json:"item_type"`
	Rarity   string `json:"rarity"`
	Used     bool   `json:"used"`
}

type PlayerState struct {
	PlayerID         string      `json:"player_id"`
	Username         string      `json:"username"`
	Status           string      `json:"status"`
	CurrentPuzzle    int         `json:"current_puzzle"`
	PuzzlesCompleted int         `json:"puzzles_completed"`
	Score            int         `json:"score"`
	TotalTimeSeconds float64     `json:"total_time_seconds"`
	FinishRank       int         `json:"finish_rank,omitempty"`
	Items            []ItemState `json:"items,omitempty"`
}

type EffectState struct {
	EffectID  string  `json:"effect_id"`
	ItemType  string  `json:"item_type"`
	SourceID  string  `json:"source_id"`
	TargetID  string  `json:"target_id"`
	ExpiresAt float64 `json:"expires_at"`
}

// GameStateData is the full snapshot granted on join and on
// get_game_state. Secrets are masked except for completed puzzles; Items
// are populated only for the requesting player.
type GameStateData struct {
	SessionID    string        `json:"session_id"`
	Mode         string        `json:"mode"`
	Difficulty   string        `json:"difficulty"`
	Status       string        `json:"status"`
	CreatorID    string        `json:"creator_id"`
	ActivePuzzle int           `json:"active_puzzle"`
	TotalPuzzles int           `json:"total_puzzles"`
	MaxPlayers   int           `json:"max_players"`
	Players      []PlayerState `json:"players"`
	Puzzles      []PuzzleState `json:"puzzles"`
	Effects      []EffectState `json:"effects,omitempty"`
}

// HeartbeatData echoes the server clock so clients can gauge drift.
type HeartbeatData struct {
	Timestamp float64 `json:"timestamp"`
}

type ErrorData struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}
