package seed

import "github.com/okian/spms/internal/domain/draw"

// Attendance profiles, chosen per student and quarter.
const (
	profileAbsent = iota
	profileOccasional
	profileRegular
	profileRegularPlus
	profileDedicated
	profileOccasionalPlus
	profileRegularMinus
	profileAnything
	profileCount
)

// attendance returns how many of sessions a student attends. The mix puts
// most students in the middle tier with a few at either end, so every prize
// tier shows up.
func attendance(src draw.Source, sessions int) int {
	var lo, hi int
	switch src.Intn(profileCount) {
	case profileAbsent:
		return 0
	case profileOccasional:
		lo, hi = 1, 4
	case profileRegular, profileRegularPlus:
		lo, hi = 5, 14
	case profileRegularMinus:
		lo, hi = 3, 8
	case profileOccasionalPlus:
		lo, hi = 2, 6
	case profileDedicated:
		lo, hi = 15, 25
	default:
		lo, hi = 0, sessions
	}
	if hi > sessions {
		hi = sessions
	}
	if lo > hi {
		lo = hi
	}
	return lo + src.Intn(hi-lo+1)
}
