package model

import "time"

// ChatMessage is one message in a match's chat thread.
type ChatMessage struct {
	ID              string
	MatchID         string
	SenderProfileID string
	Content         string
	CreatedAt       time.Time
}
