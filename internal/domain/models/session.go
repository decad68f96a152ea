package models

import "time"

// SessionStatus is the state of a pending-confirmation session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionEdited    SessionStatus = "EDITED"
	SessionConfirmed SessionStatus = "CONFIRMED"
	SessionRejected  SessionStatus = "REJECTED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// Terminal reports whether no further transitions are accepted.
func (s SessionStatus) Terminal() bool {
	return s == SessionConfirmed || s == SessionRejected || s == SessionExpired
}

// CanTransition reports whether moving from s to next is an allowed edge.
// Allowed: PENDING -> {EDITED, CONFIRMED, REJECTED, EXPIRED},
// EDITED -> CONFIRMED.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionPending:
		return next == SessionEdited || next == SessionConfirmed ||
			next == SessionRejected || next == SessionExpired
	case SessionEdited:
		return next == SessionConfirmed
	default:
		return false
	}
}

// ConfirmationSession holds a low-confidence candidate awaiting the user's
// confirm / edit / reject. Sessions are keyed by ID, not by user: a user may
// have several pending sessions at once.
type ConfirmationSession struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Candidate *TradeCandidate `json:"candidate"`
	Status    SessionStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ExpiredAt reports whether the session TTL has elapsed at the given time.
func (s *ConfirmationSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
