package model

import "time"

type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionFinished SessionState = "finished"
)

// Turn is one message in an interview session.
type Turn struct {
	Role         string `json:"role"` // "user" | "assistant"
	Content      string `json:"content"`
	Topic        string `json:"topic,omitempty"`
	Title        string `json:"title,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Interruption bool   `json:"interruption,omitempty"`
	FollowUp     bool   `json:"followUp,omitempty"`
}

// Session is one profile-builder interview. A profile owns zero or more;
// only the newest may be active. Progress is monotonic within a session.
type Session struct {
	Turns     []Turn       `json:"turns"`
	State     SessionState `json:"state"`
	Progress  int          `json:"progress"`
	StartedAt time.Time    `json:"startedAt"`
}

// NewSession seeds the interview with the standing greeting.
func NewSession(now time.Time) Session {
	return Session{
		Turns: []Turn{
			{Role: "assistant", Content: "Ready to get started?"},
		},
		State:     SessionActive,
		Progress:  0,
		StartedAt: now,
	}
}

// AddUserTurn appends the user's utterance. The interruption flag only
// sticks when the previous turn was not the user's: from the model's
// perspective, back-to-back user messages are a continuation, not an
// interruption.
func (s *Session) AddUserTurn(content string, interruption bool) {
	prevRole := ""
	if len(s.Turns) > 0 {
		prevRole = s.Turns[len(s.Turns)-1].Role
	}
	s.Turns = append(s.Turns, Turn{
		Role:         "user",
		Content:      content,
		Interruption: interruption && prevRole != "user",
	})
}

// AddAssistantTurn appends the assistant reply and advances progress.
// Progress never moves backward.
func (s *Session) AddAssistantTurn(t Turn, progress int) {
	s.Turns = append(s.Turns, t)
	if progress > s.Progress {
		s.Progress = progress
	}
}

// UserTurnCount counts the user's responses so far.
func (s *Session) UserTurnCount() int {
	n := 0
	for _, t := range s.Turns {
		if t.Role == "user" {
			n++
		}
	}
	return n
}

// Finish marks the session done. Finishing is one-way.
func (s *Session) Finish() { s.State = SessionFinished }

// Done reports whether progress has crossed the completion threshold.
func (s *Session) Done() bool { return s.Progress >= 100 }
