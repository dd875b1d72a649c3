package seed

import (
	"time"

	"github.com/okian/spms/internal/domain/draw"
)

// Config controls how much data Run creates.
type Config struct {
	Year          int   // calendar year split into four quarters
	Students      int   // students spread evenly over grades 9..12
	SessionsPerQ  int   // event times per quarter
	RandomSeed    int64 // 0 picks a time-based seed
	IncludeAdmins bool  // also create an admin and a staff account

	// Source overrides RandomSeed when set.
	Source draw.Source
}

// DefaultConfig returns a small but varied school for the current year.
func DefaultConfig() Config {
	return Config{
		Year:          time.Now().Year(),
		Students:      40,
		SessionsPerQ:  30,
		IncludeAdmins: true,
	}
}

// Report summarizes what Run created.
type Report struct {
	Quarters   []int64
	AdminID    int64
	StaffID    int64
	StudentIDs []int64
	EventTimes int
	Points     int
	Duration   time.Duration
}

// defaultEvents are the school activities sessions are drawn from.
var defaultEvents = []string{
	"Men's Basketball",
	"Football",
	"Women's Tennis",
	"Wrestling",
	"Swim and Dive",
	"Movie Night",
	"School Play",
	"International Night",
	"Field Day",
	"Book Fair",
}
