package models

import "time"

// SessionStatus represents the current state of a scrape session
type SessionStatus string

const (
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusTimedOut  SessionStatus = "TIMED_OUT"
	StatusError     SessionStatus = "ERROR"
)

// Session represents one browser-backed manifest search
type Session struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	TargetURL  string        `json:"targetUrl"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Link       string        `json:"link,omitempty"`
}

// ScrapeResponse is the body returned by GET /scrape.
// Link is null when no manifest request was observed before the deadline.
type ScrapeResponse struct {
	Link *string `json:"link"`
}
