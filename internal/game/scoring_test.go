package game

import (
	"testing"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
)

var testScoring = config.ScoringConfig{
	ExactWeight:     10,
	PartialWeight:   3,
	AttemptBonusMax: 50,
	TimeBonusMax:    30,
	TimeBonusWindow: 60 * time.Second,
	MalusPenalty:    5,
}

func TestAttemptScoreFirstAttemptSolve(t *testing.T) {
	// base 40, attempt bonus round(50*11/12)=46, time bonus 30.
	got := AttemptScore(testScoring, 4, 0, 1.0, 1, 12, 0, 0)
	if got != 116 {
		t.Errorf("Expected 116, got %d", got)
	}
}

func TestAttemptScoreMidGame(t *testing.T) {
	// base round((20+9)*1.3)=38, attempt bonus 25, time bonus round(7.5)=8.
	got := AttemptScore(testScoring, 2, 3, 1.3, 5, 10, 45*time.Second, 0)
	if got != 71 {
		t.Errorf("Expected 71, got %d", got)
	}
}

func TestAttemptScoreTimeBonusWindowClosed(t *testing.T) {
	// Exactly at the window boundary the time bonus is gone.
	with := AttemptScore(testScoring, 1, 0, 1.0, 6, 12, 59*time.Second, 0)
	without := AttemptScore(testScoring, 1, 0, 1.0, 6, 12, 60*time.Second, 0)
	if without >= with {
		t.Errorf("Expected boundary attempt to score less: %d vs %d", without, with)
	}
	lastMoment := AttemptScore(testScoring, 1, 0, 1.0, 6, 12, 2*time.Hour, 0)
	if lastMoment != without {
		t.Errorf("Expected no time bonus past the window, got %d vs %d", lastMoment, without)
	}
}

func TestAttemptScoreLastAttemptNoBonus(t *testing.T) {
	// Using the final attempt earns zero attempt bonus.
	got := AttemptScore(testScoring, 3, 0, 1.0, 12, 12, 61*time.Second, 0)
	if got != 30 {
		t.Errorf("Expected bare base score 30, got %d", got)
	}
}

func TestAttemptScoreMalusFloor(t *testing.T) {
	// Maluses can eat the whole score but never push it negative.
	got := AttemptScore(testScoring, 0, 1, 1.0, 12, 12, 2*time.Minute, 3)
	if got != 0 {
		t.Errorf("Expected floor at 0, got %d", got)
	}
}

func TestAttemptScoreMalusSubtracts(t *testing.T) {
	clean := AttemptScore(testScoring, 4, 0, 1.0, 1, 12, 0, 0)
	hexed := AttemptScore(testScoring, 4, 0, 1.0, 1, 12, 0, 2)
	if clean-hexed != 2*testScoring.MalusPenalty {
		t.Errorf("Expected 2 maluses to cost %d, got %d", 2*testScoring.MalusPenalty, clean-hexed)
	}
}

func TestAttemptScoreIsPure(t *testing.T) {
	first := AttemptScore(testScoring, 2, 2, 1.6, 3, 8, 10*time.Second, 1)
	second := AttemptScore(testScoring, 2, 2, 1.6, 3, 8, 10*time.Second, 1)
	if first != second {
		t.Errorf("Same inputs produced %d then %d", first, second)
	}
}
