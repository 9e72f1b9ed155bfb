package protocol

// CommandType enumerates every client command the server accepts. The set
// is closed: anything else is rejected with a validation error instead of
// falling through silently.
type CommandType string

const (
	CmdAuthenticate CommandType = "authenticate"
	CmdJoinRoom     CommandType = "join_room"
	CmdLeaveRoom    CommandType = "leave_room"
	CmdStartGame    CommandType = "start_game"
	CmdMakeAttempt  CommandType = "make_attempt"
	CmdUseItem      CommandType = "use_item"
	CmdChatMessage  CommandType = "chat_message"
	CmdHeartbeat    CommandType = "heartbeat"
	CmdGetGameState CommandType = "get_game_state"
)

// RequiresAuth reports whether a command needs an authenticated identity.
// Only authenticate and heartbeat are allowed on anonymous connections.
func (c CommandType) RequiresAuth() bool {
	switch c {
	case CmdAuthenticate, CmdHeartbeat:
		return false
	default:
		return true
	}
}

type AuthenticatePayload struct {
	Credential string `json:"credential"`
}

type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"room_id"`
}

type StartGamePayload struct {
	SessionID string `json:"session_id"`
}

type MakeAttemptPayload struct {
	SessionID string `json:"session_id"`
	Guess     []int  `json:"guess"`
}

type UseItemPayload struct {
	SessionID string   `json:"session_id"`
	ItemType  string   `json:"item_type"`
	Targets   []string `json:"targets,omitempty"`
}

type ChatMessagePayload struct {
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

type GetGameStatePayload struct {
	SessionID string `json:"session_id"`
}
