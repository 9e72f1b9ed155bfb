package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/oracle"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
)

// SubmitAttempt evaluates one guess against the player's current puzzle.
// The attempt always scores; a winning guess additionally completes the
// puzzle, draws items, and moves the player forward. The full result goes
// back to the actor, a redacted notice to the rest of the room.
func (c *Coordinator) SubmitAttempt(ctx context.Context, roomID, identityID string, guess []int) (*protocol.AttemptResultData, error) {
	s, err := c.sessionByID(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.reapOverdue(ctx, s, now)

	if s.Status != StatusActive {
		return nil, Errorf(CodeState, "session %s is not running", roomID)
	}
	p, ok := s.Players[identityID]
	if !ok {
		return nil, Errorf(CodeState, "you are not part of session %s", roomID)
	}
	if p.Status != PlayerPlaying {
		return nil, Errorf(CodeState, "you cannot play right now (status %s)", p.Status)
	}
	if c.scheduler.HasActive(s.ID, identityID, ItemFreezeTime) {
		return nil, Errorf(CodeState, "your attempts are frozen")
	}

	pz := s.Puzzles[p.CurrentPuzzle]
	limit := p.effectiveCap(pz)
	if p.Attempts[pz.Index] >= limit {
		return nil, Errorf(CodeState, "attempt cap reached on puzzle %d", pz.Index)
	}
	if err := validateGuess(guess, pz); err != nil {
		return nil, err
	}

	p.Attempts[pz.Index]++
	p.TotalAttempts++
	attemptNumber := p.Attempts[pz.Index]
	elapsed := now.Sub(p.PuzzleStartedAt)

	verdict := oracle.Score(pz.Secret, guess)
	winning := verdict.Solved(pz.Length)

	malus := 0
	for _, effect := range c.scheduler.Active(s.ID, identityID) {
		if spec, known := ItemSpecByType(effect.Type); known && spec.Kind == ItemOpponent {
			malus++
		}
	}
	score := AttemptScore(c.cfg.Scoring, verdict.ExactMatches, verdict.PositionMatches,
		s.Difficulty.ScoreFactor, attemptNumber, limit, elapsed, malus)
	if c.scheduler.HasActive(s.ID, identityID, ItemDoubleScore) {
		score *= 2
	}
	p.Score += score

	var grants []protocol.ItemGrant
	if winning {
		p.Status = PlayerPuzzleComplete
		if pz.CompletedAt.IsZero() {
			pz.CompletedAt = now
			pz.CompletedBy = identityID
		}
		p.Completed[pz.Index] = true
		p.PuzzlesCompleted++
		p.TotalTime += elapsed

		if s.Settings.ItemsEnabled {
			for _, drawn := range drawItems(c.cfg.Items.Rarity, drawCount(attemptNumber, limit), now) {
				item := drawn
				p.Items = append(p.Items, &item)
				grants = append(grants, protocol.ItemGrant{ItemType: item.Type, Rarity: string(item.Rarity)})
			}
		}

		if next := s.nextPuzzleFor(p, pz.Index); next >= 0 {
			p.CurrentPuzzle = next
			p.PuzzleStartedAt = now
			p.Status = PlayerPlaying
			s.advanceFrontier(next)
		} else {
			c.finishPlayer(s, p, now)
		}
	} else if attemptNumber >= limit {
		c.exhaustPlayer(s, p, pz, now)
	}

	result := &protocol.AttemptResultData{
		SessionID:         s.ID,
		PuzzleIndex:       pz.Index,
		AttemptNumber:     attemptNumber,
		Guess:             guess,
		ExactMatches:      verdict.ExactMatches,
		PositionMatches:   verdict.PositionMatches,
		IsWinning:         winning,
		Score:             score,
		TotalScore:        p.Score,
		RemainingAttempts: limit - attemptNumber,
		PlayerStatus:      string(p.Status),
	}
	if s.Settings.QuantumEnabled {
		result.Confidence = oracle.Confidence(pz.Secret, guess)
	}

	c.notify.Identity(identityID, protocol.EvtAttemptResult, result)
	c.notify.RoomExceptIdentity(s.ID, identityID, protocol.EvtAttemptMade, &protocol.AttemptMadeData{
		SessionID:     s.ID,
		PlayerID:      identityID,
		Username:      p.Identity.Username,
		PuzzleIndex:   pz.Index,
		AttemptNumber: attemptNumber,
		IsWinning:     winning,
	})
	if winning {
		c.notify.Room(s.ID, protocol.EvtMastermindComplete, &protocol.MastermindCompleteData{
			SessionID:         s.ID,
			PlayerID:          identityID,
			Username:          p.Identity.Username,
			PuzzleIndex:       pz.Index,
			AttemptsUsed:      attemptNumber,
			TotalScore:        p.Score,
			CompletionSeconds: elapsed.Seconds(),
			ItemsObtained:     grants,
			PlayerStatus:      string(p.Status),
		})
		c.logger.Info("Puzzle completed",
			slog.String("sessionID", s.ID),
			slog.String("playerID", identityID),
			slog.Int("puzzleIndex", pz.Index),
			slog.Int("attempts", attemptNumber),
		)
	}

	c.checkSessionEnd(ctx, s, now)
	return result, nil
}

// exhaustPlayer settles a player who ran out of attempts on a puzzle.
// Multi-mastermind moves them on without completion credit; battle
// royale eliminates them.
func (c *Coordinator) exhaustPlayer(s *Session, p *PlayerProgress, pz *Puzzle, now time.Time) {
	p.TotalTime += now.Sub(p.PuzzleStartedAt)

	if s.Settings.Mode == ModeBattleRoyale {
		p.Status = PlayerEliminated
		p.GraceDeadline = time.Time{}
		c.logger.Info("Player eliminated",
			slog.String("sessionID", s.ID),
			slog.String("playerID", p.Identity.ID),
			slog.Int("puzzleIndex", pz.Index),
		)
		return
	}

	if next := s.nextPuzzleFor(p, pz.Index); next >= 0 {
		p.CurrentPuzzle = next
		p.PuzzleStartedAt = now
		s.advanceFrontier(next)
	} else {
		c.finishPlayer(s, p, now)
	}
}
