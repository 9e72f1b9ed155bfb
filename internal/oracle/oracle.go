// Package oracle evaluates guesses against secret color combinations.
// It is pure computation: no state, no clocks, no randomness.
package oracle

// Result reports how a guess relates to a secret.
type Result struct {
	// ExactMatches counts positions holding the right color.
	ExactMatches int
	// PositionMatches counts colors that appear in the secret but sit in
	// the wrong position. Each secret occurrence is consumed at most once.
	PositionMatches int
}

// Solved reports whether the guess matched every position.
func (r Result) Solved(length int) bool {
	return r.ExactMatches == length
}

// Score compares a guess to a secret. Both slices must be the same length;
// the caller validates input before asking.
func Score(secret, guess []int) Result {
	exact := 0
	secretLeft := make(map[int]int)
	guessLeft := make(map[int]int)
	for i := range secret {
		if guess[i] == secret[i] {
			exact++
			continue
		}
		secretLeft[secret[i]]++
		guessLeft[guess[i]]++
	}

	partial := 0
	for color, n := range guessLeft {
		if m := secretLeft[color]; m < n {
			partial += m
		} else {
			partial += n
		}
	}
	return Result{ExactMatches: exact, PositionMatches: partial}
}

// Per-position certainty levels reported by Confidence.
const (
	confExact   = 0.9
	confPresent = 0.5
	confAbsent  = 0.1
)

// Confidence reports a per-position certainty value for a guess: 0.9 where
// the position is exactly right, 0.5 where the color exists elsewhere in
// the secret, 0.1 where it does not. Secret occurrences are consumed left
// to right, so the number of 0.5 entries always equals PositionMatches for
// the same pair.
func Confidence(secret, guess []int) []float64 {
	conf := make([]float64, len(guess))
	secretLeft := make(map[int]int)
	for i := range secret {
		if guess[i] != secret[i] {
			secretLeft[secret[i]]++
		}
	}

	for i, color := range guess {
		switch {
		case color == secret[i]:
			conf[i] = confExact
		case secretLeft[color] > 0:
			conf[i] = confPresent
			secretLeft[color]--
		default:
			conf[i] = confAbsent
		}
	}
	return conf
}
