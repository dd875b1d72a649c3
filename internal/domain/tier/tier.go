// Package tier maps quarter point counts to prize levels.
package tier

// Level is a prize eligibility bucket.
type Level int

const (
	Level1 Level = 1
	Level2 Level = 2
	Level3 Level = 3
)

// Point thresholds where the next level starts.
const (
	level2Threshold = 5
	level3Threshold = 15
)

// For returns the prize level earned with points. It is total: any count,
// including zero or negative, maps to a level.
func For(points int) Level {
	switch {
	case points < level2Threshold:
		return Level1
	case points < level3Threshold:
		return Level2
	default:
		return Level3
	}
}

// Valid reports whether l is a level prizes can be stored under.
func (l Level) Valid() bool {
	return l >= Level1 && l <= Level3
}
