package game

import (
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/effects"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
)

// Snapshot returns the full session state as seen by one player: the
// grant sent on join and the answer to get_game_state.
func (c *Coordinator) Snapshot(roomID, identityID string) (*protocol.GameStateData, error) {
	s, err := c.sessionByID(roomID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildGameState(c.scheduler, s, identityID), nil
}

// buildGameState assembles the wire snapshot for one viewer. Secrets stay
// masked except on puzzles the viewer solved themselves, or everywhere
// once the session is finished. Inventories are private, so only the
// viewer's own items appear. Callers hold the session lock.
func buildGameState(scheduler *effects.Scheduler, s *Session, viewerID string) *protocol.GameStateData {
	viewer := s.Players[viewerID]

	gs := &protocol.GameStateData{
		SessionID:    s.ID,
		Mode:         s.Settings.Mode,
		Difficulty:   s.Settings.Difficulty,
		Status:       string(s.Status),
		CreatorID:    s.CreatorID,
		ActivePuzzle: s.ActivePuzzle,
		TotalPuzzles: len(s.Puzzles),
		MaxPlayers:   s.Settings.MaxPlayers,
	}

	for _, p := range s.playersInJoinOrder() {
		ps := protocol.PlayerState{
			PlayerID:         p.Identity.ID,
			Username:         p.Identity.Username,
			Status:           string(p.Status),
			CurrentPuzzle:    p.CurrentPuzzle,
			PuzzlesCompleted: p.PuzzlesCompleted,
			Score:            p.Score,
			TotalTimeSeconds: p.playTime().Seconds(),
			FinishRank:       p.FinishRank,
		}
		if p.Identity.ID == viewerID {
			for _, item := range p.Items {
				ps.Items = append(ps.Items, protocol.ItemState{
					ItemType: item.Type,
					Rarity:   string(item.Rarity),
					Used:     item.Used,
				})
			}
		}
		gs.Players = append(gs.Players, ps)
	}

	for _, pz := range s.Puzzles {
		view := protocol.PuzzleState{
			Index:       pz.Index,
			Length:      pz.Length,
			PaletteSize: pz.PaletteSize,
			AttemptCap:  pz.AttemptCap,
			IsActive:    pz.IsActive,
			Completed:   !pz.CompletedAt.IsZero(),
			TargetID:    pz.TargetID,
		}
		if !pz.CompletedAt.IsZero() {
			view.CompletedAt = protocol.UnixTimestamp(pz.CompletedAt)
		}
		if s.Status == StatusFinished || (viewer != nil && viewer.Completed[pz.Index]) {
			view.Secret = pz.Secret
		}
		gs.Puzzles = append(gs.Puzzles, view)
	}

	for _, p := range s.playersInJoinOrder() {
		for _, effect := range scheduler.Active(s.ID, p.Identity.ID) {
			gs.Effects = append(gs.Effects, protocol.EffectState{
				EffectID:  effect.ID.String(),
				ItemType:  effect.Type,
				SourceID:  effect.AppliedBy,
				TargetID:  effect.TargetID,
				ExpiresAt: protocol.UnixTimestamp(effect.ExpiresAt),
			})
		}
	}
	return gs
}
