package game

import (
	"math"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
)

// AttemptScore computes the points earned by a single attempt. It is a
// pure function of its inputs:
//
//	base    = round((exact*ExactWeight + partial*PartialWeight) * factor)
//	bonus   = round(AttemptBonusMax * unusedAttemptFraction)
//	        + round(TimeBonusMax * remainingWindowFraction)
//	penalty = malusCount * MalusPenalty
//
// The sum is floored at zero. Doubling under a double_score effect is the
// caller's business, applied after the floor.
func AttemptScore(sc config.ScoringConfig, exact, partial int, factor float64, attemptNumber, attemptCap int, elapsed time.Duration, malusCount int) int {
	base := int(math.Round(float64(exact*sc.ExactWeight+partial*sc.PartialWeight) * factor))

	bonus := 0
	if attemptCap > 0 && attemptNumber <= attemptCap {
		unused := float64(attemptCap-attemptNumber) / float64(attemptCap)
		bonus += int(math.Round(float64(sc.AttemptBonusMax) * unused))
	}
	if sc.TimeBonusWindow > 0 && elapsed < sc.TimeBonusWindow {
		remaining := 1 - elapsed.Seconds()/sc.TimeBonusWindow.Seconds()
		bonus += int(math.Round(float64(sc.TimeBonusMax) * remaining))
	}

	total := base + bonus - malusCount*sc.MalusPenalty
	if total < 0 {
		return 0
	}
	return total
}
