package model

import (
	"encoding/json"
	"time"
)

type JobState string

const (
	JobStateCreated   JobState = "created"
	JobStateRetry     JobState = "retry"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateExpired   JobState = "expired"
	JobStateCancelled JobState = "cancelled"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether a job in this state will never run again.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateExpired, JobStateCancelled, JobStateFailed:
		return true
	}
	return false
}

// Job is one durable unit of background work. The persisted row shape is the
// contract admin tooling reads, so fields map 1:1 onto the jobs table.
type Job struct {
	ID           string
	Name         string
	Data         json.RawMessage
	State        JobState
	Priority     int
	RetryCount   int
	RetryLimit   int
	RetryDelay   time.Duration
	RetryBackoff bool // exponential when true, fixed otherwise
	StartAfter   time.Time
	StartedAt    *time.Time
	SingletonKey string
	ExpireIn     time.Duration
	KeepUntil    time.Time
	LastError    string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// JobOptions carries the enqueue-time knobs. Zero values fall back to the
// queue defaults at insert time.
type JobOptions struct {
	Priority     int
	RetryLimit   int
	RetryDelay   time.Duration
	RetryBackoff bool
	StartAfter   time.Time
	SingletonKey string
	ExpireIn     time.Duration
	KeepFor      time.Duration
}

// NextRetryDelay computes the delay before attempt retryCount+1.
// Exponential backoff doubles per attempt: delay << retryCount.
func (j *Job) NextRetryDelay() time.Duration {
	if !j.RetryBackoff {
		return j.RetryDelay
	}
	d := j.RetryDelay << uint(j.RetryCount)
	if d > maxRetryDelay || d < j.RetryDelay { // overflow guard
		return maxRetryDelay
	}
	return d
}

const maxRetryDelay = 24 * time.Hour

// CanRetry reports whether a failed attempt should transition to retry
// rather than failed.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.RetryLimit
}

// ExpiresAt returns the wall-clock deadline for an active job, or the zero
// time when the job carries no execution limit.
func (j *Job) ExpiresAt() time.Time {
	if j.ExpireIn <= 0 || j.StartedAt == nil {
		return time.Time{}
	}
	return j.StartedAt.Add(j.ExpireIn)
}
