package winners

import "errors"

// Resolution and reassignment outcomes reported to callers.
var (
	ErrQuarterNotFound    = errors.New("quarter not found")
	ErrPrizeNotFound      = errors.New("prize not found")
	ErrNoWinnersAvailable = errors.New("no winners available")
	ErrWinnerNotFound     = errors.New("winner not found")
)

// Errors store implementations return so the resolver can tell expected
// outcomes from failures. Match them with errors.Is.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing one")
)
