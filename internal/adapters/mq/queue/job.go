package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reasons a resolution job was scheduled.
const (
	ReasonManual       = "manual"
	ReasonQuarterEnded = "quarter_ended"
)

// Job asks a worker to resolve the winners of one quarter.
type Job struct {
	ID         string    `json:"id"`
	QuarterID  int64     `json:"quarter_range_id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob builds a job with a fresh id.
func NewJob(quarterID int64, reason string) Job {
	return Job{
		ID:         uuid.NewString(),
		QuarterID:  quarterID,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
}

func encodeJob(j Job) (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	return string(b), nil
}

func decodeJob(s string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(s), &j); err != nil {
		return Job{}, fmt.Errorf("%w: %w", ErrBadJob, err)
	}
	if j.QuarterID <= 0 {
		return Job{}, fmt.Errorf("%w: quarter id %d", ErrBadJob, j.QuarterID)
	}
	return j, nil
}
