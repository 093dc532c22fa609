package model

import "time"

type MatchState string

const (
	MatchUndecided MatchState = "undecided"
	MatchDeferred  MatchState = "deferred"
	MatchAccepted  MatchState = "accepted"
	MatchRejected  MatchState = "rejected"
)

// MatchDecision is the scheduler's persisted metadata, stored in the match
// row's data column. MatchTime set means the verdict was "match" and the
// visible acceptance is deferred until that instant.
type MatchDecision struct {
	MatchTime *time.Time `json:"matchTime,omitempty"`
}

// Match pairs two profiles. For bot matches exactly one side is bot-owned.
type Match struct {
	ID               string
	ProfileID        string
	MatchedProfileID string
	Decision         MatchDecision
	MatchAcceptedAt  *time.Time
	MatchRejectedAt  *time.Time
	CreatedAt        time.Time
}

// State derives the explicit scheduler state in one place so callers never
// infer it from field presence.
func (m *Match) State() MatchState {
	switch {
	case m.MatchAcceptedAt != nil:
		return MatchAccepted
	case m.MatchRejectedAt != nil:
		return MatchRejected
	case m.Decision.MatchTime != nil:
		return MatchDeferred
	default:
		return MatchUndecided
	}
}

// Defer records the sticky "match" verdict with its randomized reveal time.
// A second call is a no-op; the decision is never re-asked.
func (m *Match) Defer(matchTime time.Time) {
	if m.Decision.MatchTime != nil {
		return
	}
	t := matchTime
	m.Decision.MatchTime = &t
}

// Due reports whether a deferred match should become visible now.
func (m *Match) Due(now time.Time) bool {
	return m.Decision.MatchTime != nil && !now.Before(*m.Decision.MatchTime)
}
