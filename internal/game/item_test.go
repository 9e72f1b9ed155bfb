package game

import (
	"context"
	"testing"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
)

// --- Validation ---

func TestUseItemRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roomID, _ := h.newMatch(waitingSettings(), "p1", "p2")

	// Still waiting: nothing is usable.
	_, err := h.coord.UseItem(ctx, roomID, "p1", ItemExtraHint, nil)
	wantCode(t, err, CodeState)

	if err := h.coord.Start(ctx, roomID, "p1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = h.coord.UseItem(ctx, roomID, "ghost", ItemExtraHint, nil)
	wantCode(t, err, CodeState)
	_, err = h.coord.UseItem(ctx, roomID, "p1", "warp_drive", nil)
	wantCode(t, err, CodeNotFound)
	_, err = h.coord.UseItem(ctx, roomID, "p1", ItemExtraHint, nil)
	wantCode(t, err, CodeItemNotAvailable)
}

func TestUseItemDisabledBySettings(t *testing.T) {
	h := newHarness(t)
	settings := waitingSettings()
	settings.ItemsEnabled = false
	roomID, _ := h.startedMatch(settings, "p1", "p2")

	h.grantItem(roomID, "p1", ItemExtraHint)
	_, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemExtraHint, nil)
	wantCode(t, err, CodeState)
}

func TestUseItemTargetRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	settings := waitingSettings()
	settings.Mode = ModeBattleRoyale
	roomID, _ := h.startedMatch(settings, "p1", "p2", "p3")

	h.grantItem(roomID, "p1", ItemExtraHint)
	h.grantItem(roomID, "p1", ItemFreezeTime)

	// Self items cannot be pointed at someone else.
	_, err := h.coord.UseItem(ctx, roomID, "p1", ItemExtraHint, []string{"p2"})
	wantCode(t, err, CodeInvalidTarget)

	// Opponent items need a target, never the actor, never a ghost.
	_, err = h.coord.UseItem(ctx, roomID, "p1", ItemFreezeTime, nil)
	wantCode(t, err, CodeInvalidTarget)
	_, err = h.coord.UseItem(ctx, roomID, "p1", ItemFreezeTime, []string{"p1"})
	wantCode(t, err, CodeInvalidTarget)
	_, err = h.coord.UseItem(ctx, roomID, "p1", ItemFreezeTime, []string{"ghost"})
	wantCode(t, err, CodeInvalidTarget)

	// Eliminated players are no longer valid targets, and cannot act.
	h.session(roomID).Players["p2"].Attempts[0] = 11
	h.missCurrent(roomID, "p2")
	_, err = h.coord.UseItem(ctx, roomID, "p1", ItemFreezeTime, []string{"p2"})
	wantCode(t, err, CodeInvalidTarget)
	_, err = h.coord.UseItem(ctx, roomID, "p2", ItemFreezeTime, []string{"p1"})
	wantCode(t, err, CodeState)

	// None of the rejections consumed the item; a valid use still works.
	if _, err := h.coord.UseItem(ctx, roomID, "p1", ItemFreezeTime, []string{"p3"}); err != nil {
		t.Fatalf("UseItem after rejections failed: %v", err)
	}
	_, err = h.coord.UseItem(ctx, roomID, "p1", ItemFreezeTime, []string{"p3"})
	wantCode(t, err, CodeItemNotAvailable)
}

// --- Mechanics ---

func TestExtraHintStaysPrivate(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemExtraHint)
	h.notifier.reset()

	used, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemExtraHint, nil)
	if err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}

	s := h.session(roomID)
	secret := s.Puzzles[s.Players["p1"].CurrentPuzzle].Secret
	if used.Hint == nil {
		t.Fatal("Expected a hint on the actor's copy")
	}
	if used.Hint.Position < 0 || used.Hint.Position >= len(secret) {
		t.Fatalf("Hint position %d out of range", used.Hint.Position)
	}
	if used.Hint.Color != secret[used.Hint.Position] {
		t.Errorf("Hint color %d does not match the secret at %d", used.Hint.Color, used.Hint.Position)
	}

	events := h.notifier.ofType(protocol.EvtItemUsed)
	if len(events) != 2 {
		t.Fatalf("Expected an actor copy and a room copy, got %d", len(events))
	}
	for _, ev := range events {
		data := ev.data.(*protocol.ItemUsedData)
		switch ev.scope {
		case "identity":
			if ev.identityID != "p1" || data.Hint == nil {
				t.Errorf("Actor copy wrong: scope=%+v hint=%v", ev, data.Hint)
			}
		case "room_except_identity":
			if ev.identityID != "p1" || data.Hint != nil {
				t.Error("The room copy must not carry the hint")
			}
		default:
			t.Errorf("Unexpected scope %s for item_used", ev.scope)
		}
	}

	if item := s.Players["p1"].Items[0]; !item.Used {
		t.Error("The item should be consumed")
	}
}

func TestTimeBonusGrantsCredit(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemTimeBonus)
	h.notifier.reset()

	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemTimeBonus, nil); err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}

	p1 := h.session(roomID).Players["p1"]
	if p1.TimeCredit != 30*time.Second {
		t.Errorf("Expected 30s of credit, got %v", p1.TimeCredit)
	}
	// Credit can only ever reduce the reported time to zero.
	if p1.playTime() != 0 {
		t.Errorf("Expected clamped play time, got %v", p1.playTime())
	}
	applied := h.notifier.ofType(protocol.EvtEffectApplied)
	if len(applied) != 1 || applied[0].scope != "room" {
		t.Fatalf("Expected one room-wide effect_applied, got %d", len(applied))
	}
	if !h.coord.scheduler.HasActive(roomID, "p1", ItemTimeBonus) {
		t.Error("Expected the time_bonus marker effect on p1")
	}
}

func TestFreezeTimeThroughItemUse(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemFreezeTime)

	used, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemFreezeTime, []string{"p2"})
	if err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}
	if len(used.Targets) != 1 || used.Targets[0] != "p2" {
		t.Errorf("Expected p2 on the target list, got %v", used.Targets)
	}

	_, err = h.coord.SubmitAttempt(context.Background(), roomID, "p2", []int{1, 2, 3, 4})
	wantCode(t, err, CodeState)
}

func TestScrambleColorsHitsEveryTarget(t *testing.T) {
	h := newHarness(t)
	settings := waitingSettings()
	roomID, _ := h.startedMatch(settings, "p1", "p2", "p3")
	h.grantItem(roomID, "p1", ItemScrambleColors)
	h.notifier.reset()

	used, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemScrambleColors, []string{"p2", "p3", "p2"})
	if err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}
	// The duplicate collapses.
	if len(used.Targets) != 2 {
		t.Fatalf("Expected 2 distinct targets, got %v", used.Targets)
	}

	if applied := h.notifier.ofType(protocol.EvtEffectApplied); len(applied) != 2 {
		t.Errorf("Expected one effect_applied per victim, got %d", len(applied))
	}
	for _, victim := range []string{"p2", "p3"} {
		if !h.coord.scheduler.HasActive(roomID, victim, ItemScrambleColors) {
			t.Errorf("Expected a scramble on %s", victim)
		}
	}
	if h.coord.scheduler.HasActive(roomID, "p1", ItemScrambleColors) {
		t.Error("The actor must not scramble themselves")
	}
}

func TestReduceAttemptsCutsCapAndExhausts(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemReduceAttempts)
	h.grantItem(roomID, "p1", ItemReduceAttempts)

	s := h.session(roomID)
	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemReduceAttempts, []string{"p2"}); err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}
	p2 := s.Players["p2"]
	if p2.CapPenalty[0] != 2 {
		t.Fatalf("Expected a 2-attempt penalty, got %d", p2.CapPenalty[0])
	}
	if got := p2.effectiveCap(s.Puzzles[0]); got != 10 {
		t.Errorf("Expected an effective cap of 10, got %d", got)
	}

	// A second hit on a victim already at the reduced cap settles them
	// immediately: multi-mastermind moves them to the next puzzle.
	p2.Attempts[0] = 9
	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemReduceAttempts, []string{"p2"}); err != nil {
		t.Fatalf("Second UseItem failed: %v", err)
	}
	if p2.CurrentPuzzle != 1 || p2.PuzzlesCompleted != 0 {
		t.Errorf("Expected p2 pushed to puzzle 1 without credit, got puzzle=%d completed=%d", p2.CurrentPuzzle, p2.PuzzlesCompleted)
	}
}

func TestSkipMastermindAdvancesAndFinishes(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemSkipMastermind)
	h.grantItem(roomID, "p1", ItemSkipMastermind)

	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemSkipMastermind, nil); err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}
	s := h.session(roomID)
	p1 := s.Players["p1"]
	if p1.Score != 200 || p1.PuzzlesCompleted != 1 || p1.CurrentPuzzle != 1 {
		t.Errorf("Skip did not advance p1: score=%d completed=%d puzzle=%d", p1.Score, p1.PuzzlesCompleted, p1.CurrentPuzzle)
	}
	// The puzzle itself stays open for everyone else.
	if !s.Puzzles[0].CompletedAt.IsZero() {
		t.Error("A skip must not mark the puzzle completed")
	}

	// Skipping the last puzzle finishes the player.
	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemSkipMastermind, nil); err != nil {
		t.Fatalf("Second UseItem failed: %v", err)
	}
	if p1.Status != PlayerFinished || p1.FinishRank != 1 {
		t.Errorf("Expected p1 finished at rank 1, got %s rank %d", p1.Status, p1.FinishRank)
	}
}

func TestAddMastermindPinsExtraPuzzle(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemAddMastermind)

	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemAddMastermind, []string{"p2"}); err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}

	s := h.session(roomID)
	if len(s.Puzzles) != 3 {
		t.Fatalf("Expected a third puzzle, got %d", len(s.Puzzles))
	}
	extra := s.Puzzles[2]
	if extra.TargetID != "p2" || extra.Index != 2 {
		t.Errorf("Extra puzzle should be pinned to p2: %+v", extra)
	}

	// p1 never faces the pinned puzzle and finishes after the base two.
	h.solveCurrent(roomID, "p1")
	h.solveCurrent(roomID, "p1")
	if p1 := s.Players["p1"]; p1.Status != PlayerFinished || p1.FinishRank != 1 {
		t.Errorf("Expected p1 finished at rank 1, got %s rank %d", p1.Status, p1.FinishRank)
	}

	// p2 has to clear all three.
	h.solveCurrent(roomID, "p2")
	h.solveCurrent(roomID, "p2")
	p2 := s.Players["p2"]
	if p2.Status != PlayerPlaying || p2.CurrentPuzzle != 2 {
		t.Fatalf("Expected p2 on the pinned puzzle, got %s puzzle %d", p2.Status, p2.CurrentPuzzle)
	}
	h.solveCurrent(roomID, "p2")
	if p2.Status != PlayerFinished || p2.PuzzlesCompleted != 3 {
		t.Errorf("Expected p2 done with 3 completions, got %s %d", p2.Status, p2.PuzzlesCompleted)
	}
	if s.Status != StatusFinished {
		t.Errorf("Expected the session finished, got %s", s.Status)
	}
}

func TestAddMastermindRespectsPuzzleLimit(t *testing.T) {
	h := newHarness(t)
	settings := waitingSettings()
	settings.PuzzleCount = 10
	roomID, _ := h.startedMatch(settings, "p1", "p2")
	h.grantItem(roomID, "p1", ItemAddMastermind)

	_, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemAddMastermind, []string{"p2"})
	wantCode(t, err, CodeState)

	s := h.session(roomID)
	if len(s.Puzzles) != 10 {
		t.Errorf("Expected the puzzle list untouched, got %d", len(s.Puzzles))
	}
	if s.Players["p1"].unusedItem(ItemAddMastermind) == nil {
		t.Error("The rejected use must not consume the item")
	}
}

func TestDoubleScoreEffectLifecycle(t *testing.T) {
	h := newHarness(t)
	roomID, _ := h.startedMatch(waitingSettings(), "p1", "p2")
	h.grantItem(roomID, "p1", ItemDoubleScore)
	h.notifier.reset()

	if _, err := h.coord.UseItem(context.Background(), roomID, "p1", ItemDoubleScore, nil); err != nil {
		t.Fatalf("UseItem failed: %v", err)
	}

	applied := h.notifier.ofType(protocol.EvtEffectApplied)
	if len(applied) != 1 {
		t.Fatalf("Expected one effect_applied, got %d", len(applied))
	}
	data := applied[0].data.(*protocol.EffectAppliedData)
	if data.ItemType != ItemDoubleScore || data.TargetID != "p1" || data.SourceID != "p1" {
		t.Errorf("Unexpected effect_applied payload: %+v", data)
	}
	if data.DurationSeconds != 120 {
		t.Errorf("Expected a 120s duration, got %v", data.DurationSeconds)
	}

	// While active the doubling applies; after expiry the sweep announces
	// the end and scoring returns to normal.
	result := h.solveCurrent(roomID, "p1")
	if result.Score != 80 {
		t.Errorf("Expected a doubled 80-point solve, got %d", result.Score)
	}

	active := h.coord.scheduler.Active(roomID, "p1")
	if len(active) != 1 {
		t.Fatalf("Expected one active effect, got %d", len(active))
	}
	active[0].ExpiresAt = time.Now().Add(-time.Second)
	h.notifier.reset()
	h.coord.Sweep(context.Background(), time.Now())

	expired := h.notifier.ofType(protocol.EvtEffectExpired)
	if len(expired) != 1 {
		t.Fatalf("Expected one effect_expired, got %d", len(expired))
	}
	if data := expired[0].data.(*protocol.EffectExpiredData); data.EffectID != active[0].ID.String() {
		t.Errorf("effect_expired names the wrong effect: %+v", data)
	}
	if h.coord.scheduler.HasActive(roomID, "p1", ItemDoubleScore) {
		t.Error("The effect should be gone after the sweep")
	}

	result = h.solveCurrent(roomID, "p1")
	if result.Score != 40 {
		t.Errorf("Expected plain 40 points after expiry, got %d", result.Score)
	}
}
