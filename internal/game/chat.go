package game

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
)

// Chat broadcasts one line to the whole room, sender included. Messages
// are sanitized first and rejected outright when empty, too long, or
// carrying a banned word. Eliminated players lost their voice along with
// the game.
func (c *Coordinator) Chat(ctx context.Context, roomID, identityID, text string) error {
	s, err := c.sessionByID(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.reapOverdue(ctx, s, time.Now())

	if s.Status != StatusWaiting && s.Status != StatusActive {
		return Errorf(CodeState, "chat is closed in session %s", roomID)
	}
	p, ok := s.Players[identityID]
	if !ok {
		return Errorf(CodeState, "you are not part of session %s", roomID)
	}
	if p.Status == PlayerEliminated {
		return Errorf(CodeState, "eliminated players cannot chat")
	}

	line := sanitizeChatText(text)
	if line == "" {
		return Errorf(CodeValidation, "empty chat message")
	}
	if utf8.RuneCountInString(line) > c.cfg.Game.Chat.MaxLength {
		return Errorf(CodeValidation, "chat message exceeds %d characters", c.cfg.Game.Chat.MaxLength)
	}
	if containsBannedWord(line, c.cfg.Game.Chat.BannedWords) {
		return Errorf(CodeValidation, "chat message contains forbidden content")
	}

	c.notify.Room(roomID, protocol.EvtChatBroadcast, &protocol.ChatBroadcastData{
		RoomID:   roomID,
		PlayerID: identityID,
		Username: p.Identity.Username,
		Text:     line,
	})
	return nil
}

// sanitizeChatText strips control characters (keeping newlines and tabs)
// and trims surrounding whitespace.
func sanitizeChatText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func containsBannedWord(text string, banned []string) bool {
	lowered := strings.ToLower(text)
	for _, word := range banned {
		if word != "" && strings.Contains(lowered, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
