// Package types contains common types used across the application
package types

// LeaderboardEntry represents a ranked row of the quarter leaderboard
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Grade     *int   `json:"grade,omitempty"`
	Points    int    `json:"points"`
}

// Page wraps one slice of a paged listing.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// HasMore reports whether rows exist past this page.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}

// ClampPage normalizes limit and offset: limit falls back to max when it is
// not positive or exceeds max; a negative offset becomes zero.
func ClampPage(limit, offset, maxLimit int) (int, int) {
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// UserPoints is one user's standing in a quarter.
type UserPoints struct {
	QuarterID int64 `json:"quarter_range_id"`
	UserID    int64 `json:"user_id"`
	Points    int   `json:"points"`
	Level     int   `json:"level"`
}

// JobAck acknowledges a queued resolution job.
type JobAck struct {
	JobID     string `json:"job_id,omitempty"`
	QuarterID int64  `json:"quarter_range_id"`
	Duplicate bool   `json:"duplicate"`
}

// WinnerFilter narrows winner listings. Nil fields match everything.
type WinnerFilter struct {
	QuarterID *int64
	UserID    *int64
	Limit     int
	Offset    int
}
