// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Role is the account role carried by users and bearer tokens.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleStudent:
		return true
	}
	return false
}

// Category identifies a winner slot inside a quarter: the top scorer or one grade.
type Category string

// CategoryTop is the quarter-wide top scorer slot.
const CategoryTop Category = "top"

// Grades lists the grades that get their own winner category, in resolution order.
var Grades = []int{9, 10, 11, 12}

// GradeCategory returns the category for grade g, e.g. "grade-9".
func GradeCategory(g int) Category {
	return Category(fmt.Sprintf("grade-%d", g))
}

// Quarter is a time window that groups attendance points.
type Quarter struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Start time.Time `json:"start_range"`
	End   time.Time `json:"end_range"`
}

// Ended reports whether the quarter is over at now.
func (q Quarter) Ended(now time.Time) bool {
	return !now.Before(q.End)
}

// Contains reports whether now falls inside [Start, End).
func (q Quarter) Contains(now time.Time) bool {
	return !now.Before(q.Start) && now.Before(q.End)
}

// Prize is a catalog entry awarded to winners.
type Prize struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// User is the subset of account data the winner engine reads.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Grade     *int   `json:"grade,omitempty"`
	Role      Role   `json:"role"`
}

// PointCount is one row of the point aggregation for a quarter.
type PointCount struct {
	UserID int64 `json:"user_id"`
	Grade  *int  `json:"grade,omitempty"`
	Points int   `json:"points"`
}

// Winner is a persisted winner record.
type Winner struct {
	ID        int64     `json:"id"`
	QuarterID int64     `json:"quarter_range_id"`
	UserID    int64     `json:"user_id"`
	PrizeID   int64     `json:"prize_id"`
	Points    int       `json:"points"`
	TopPoints bool      `json:"top_points"`
	Grade     *int      `json:"grade,omitempty"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
