// Package review schedules spaced repetition for vault items and persists
// their review history.
package review

import "math"

// SM-2 parameters.
const (
	DefaultEase = 2.5
	MinEase     = 1.3
	PassScore   = 3
	MaxScore    = 5
)

// SM2 applies one SM-2 step for a recall score in [0,5] and returns the new
// repetition count, ease factor and interval in days.
//
// A score below 3 is a lapse: repetitions reset and the item comes back
// tomorrow with its ease unchanged (but never below MinEase).
func SM2(score, repetitions int, ease float64, interval int) (int, float64, int) {
	if score < PassScore {
		return 0, math.Max(MinEase, ease), 1
	}

	miss := float64(MaxScore - score)
	newEase := math.Max(MinEase, ease+0.1-miss*(0.08+miss*0.02))

	var newInterval int
	switch repetitions {
	case 0:
		newInterval = 1
	case 1:
		newInterval = 3
	default:
		newInterval = max(1, int(math.RoundToEven(float64(interval)*newEase)))
	}
	return repetitions + 1, newEase, newInterval
}

// roundEase rounds an ease factor to two decimals, the precision it is stored with.
func roundEase(e float64) float64 {
	return math.Round(e*100) / 100
}
