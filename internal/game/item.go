package game

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/effects"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
)

// UseItem consumes one unused inventory item and applies its mechanics:
// instant items mutate player state on the spot, durational ones are
// handed to the effect scheduler. Validation happens in full before
// anything is consumed, so a rejected use never costs the item.
func (c *Coordinator) UseItem(ctx context.Context, roomID, identityID, itemType string, targets []string) (*protocol.ItemUsedData, error) {
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
	if !s.Settings.ItemsEnabled {
		return nil, Errorf(CodeState, "items are disabled in session %s", roomID)
	}
	p, ok := s.Players[identityID]
	if !ok {
		return nil, Errorf(CodeState, "you are not part of session %s", roomID)
	}
	if p.Status != PlayerPlaying {
		return nil, Errorf(CodeState, "you cannot use items right now (status %s)", p.Status)
	}

	spec, known := ItemSpecByType(itemType)
	if !known {
		return nil, Errorf(CodeNotFound, "unknown item type %q", itemType)
	}
	item := p.unusedItem(itemType)
	if item == nil {
		return nil, Errorf(CodeItemNotAvailable, "no unused %s in your inventory", itemType)
	}

	victims, err := c.resolveTargets(s, p, spec, targets)
	if err != nil {
		return nil, err
	}
	if spec.Type == ItemAddMastermind && len(s.Puzzles)+len(victims) > c.cfg.Game.MaxPuzzles {
		return nil, Errorf(CodeState, "session %s already carries the maximum of %d puzzles", roomID, c.cfg.Game.MaxPuzzles)
	}

	item.Used = true

	used := &protocol.ItemUsedData{
		SessionID: s.ID,
		PlayerID:  identityID,
		Username:  p.Identity.Username,
		ItemType:  spec.Type,
		Rarity:    string(spec.Rarity),
	}
	if spec.Kind == ItemOpponent {
		used.Targets = make([]string, 0, len(victims))
		for _, v := range victims {
			used.Targets = append(used.Targets, v.Identity.ID)
		}
	}

	var applied []*effects.Effect
	switch spec.Type {
	case ItemExtraHint:
		pz := s.Puzzles[p.CurrentPuzzle]
		pos := rand.Intn(pz.Length)
		used.Hint = &protocol.HintInfo{Position: pos, Color: pz.Secret[pos]}
	case ItemTimeBonus:
		p.TimeCredit += time.Duration(spec.Value) * time.Second
		applied = c.applyEffects(s, p, spec, victims)
	case ItemDoubleScore:
		applied = c.applyEffects(s, p, spec, victims)
	case ItemSkipMastermind:
		c.skipPuzzle(s, p, spec.Value, now)
	case ItemScrambleColors, ItemFreezeTime:
		applied = c.applyEffects(s, p, spec, victims)
	case ItemReduceAttempts:
		for _, v := range victims {
			v.CapPenalty[v.CurrentPuzzle] += spec.Value
			vpz := s.Puzzles[v.CurrentPuzzle]
			if v.Status == PlayerPlaying && v.Attempts[vpz.Index] >= v.effectiveCap(vpz) {
				c.exhaustPlayer(s, v, vpz, now)
			}
		}
	case ItemAddMastermind:
		for _, v := range victims {
			extra := &Puzzle{
				Index:       len(s.Puzzles),
				Secret:      newSecret(s.Difficulty),
				Length:      s.Difficulty.Length,
				PaletteSize: s.Difficulty.PaletteSize,
				AttemptCap:  s.Difficulty.AttemptCap,
				TargetID:    v.Identity.ID,
			}
			s.Puzzles = append(s.Puzzles, extra)
		}
	}

	// The actor's copy carries the hint; the room never sees it.
	c.notify.Identity(identityID, protocol.EvtItemUsed, used)
	roomCopy := *used
	roomCopy.Hint = nil
	c.notify.RoomExceptIdentity(s.ID, identityID, protocol.EvtItemUsed, &roomCopy)

	for _, effect := range applied {
		c.notify.Room(s.ID, protocol.EvtEffectApplied, &protocol.EffectAppliedData{
			SessionID:       s.ID,
			EffectID:        effect.ID.String(),
			ItemType:        effect.Type,
			SourceID:        effect.AppliedBy,
			TargetID:        effect.TargetID,
			DurationSeconds: effect.ExpiresAt.Sub(effect.AppliedAt).Seconds(),
			ExpiresAt:       protocol.UnixTimestamp(effect.ExpiresAt),
		})
	}

	c.logger.Info("Item used",
		slog.String("sessionID", s.ID),
		slog.String("playerID", identityID),
		slog.String("itemType", spec.Type),
		slog.Int("targets", len(victims)),
	)

	c.checkSessionEnd(ctx, s, now)
	return used, nil
}

// resolveTargets turns the wire target list into progress records and
// enforces the targeting rules: self items stay on the actor, opponent
// items need at least one living opponent and never the actor.
func (c *Coordinator) resolveTargets(s *Session, p *PlayerProgress, spec ItemSpec, targets []string) ([]*PlayerProgress, error) {
	if spec.Kind == ItemSelf {
		if len(targets) > 1 || (len(targets) == 1 && targets[0] != p.Identity.ID) {
			return nil, Errorf(CodeInvalidTarget, "%s can only target yourself", spec.Type)
		}
		return []*PlayerProgress{p}, nil
	}

	if len(targets) == 0 {
		return nil, Errorf(CodeInvalidTarget, "%s needs at least one target", spec.Type)
	}
	seen := make(map[string]struct{}, len(targets))
	victims := make([]*PlayerProgress, 0, len(targets))
	for _, targetID := range targets {
		if targetID == p.Identity.ID {
			return nil, Errorf(CodeInvalidTarget, "%s cannot target yourself", spec.Type)
		}
		if _, dup := seen[targetID]; dup {
			continue
		}
		seen[targetID] = struct{}{}
		v, ok := s.Players[targetID]
		if !ok {
			return nil, Errorf(CodeInvalidTarget, "target %s is not in this session", targetID)
		}
		if !v.live() {
			return nil, Errorf(CodeInvalidTarget, "target %s is out of the game", targetID)
		}
		victims = append(victims, v)
	}
	return victims, nil
}

// applyEffects schedules one timed effect per victim. Target rules were
// already enforced, so a scheduler rejection here is a bug worth logging,
// not a user error.
func (c *Coordinator) applyEffects(s *Session, p *PlayerProgress, spec ItemSpec, victims []*PlayerProgress) []*effects.Effect {
	rule := effects.TargetSelf
	if spec.Kind == ItemOpponent {
		rule = effects.TargetOpponent
	}
	var applied []*effects.Effect
	for _, v := range victims {
		effect, err := c.scheduler.Apply(s.ID, v.Identity.ID, spec.Type, p.Identity.ID, rule, spec.Duration)
		if err != nil {
			c.logger.Error("Effect application rejected",
				slog.String("sessionID", s.ID),
				slog.String("itemType", spec.Type),
				slog.Any("error", err),
			)
			continue
		}
		if effect != nil {
			applied = append(applied, effect)
		}
	}
	return applied
}

// skipPuzzle is the skip_mastermind mechanic: flat points, completion
// credit for the player, and an advance past the current puzzle without
// marking it completed for anyone else.
func (c *Coordinator) skipPuzzle(s *Session, p *PlayerProgress, points int, now time.Time) {
	pz := s.Puzzles[p.CurrentPuzzle]
	p.Score += points
	p.PuzzlesCompleted++
	p.TotalTime += now.Sub(p.PuzzleStartedAt)

	if next := s.nextPuzzleFor(p, pz.Index); next >= 0 {
		p.CurrentPuzzle = next
		p.PuzzleStartedAt = now
		s.advanceFrontier(next)
	} else {
		c.finishPlayer(s, p, now)
	}
}
