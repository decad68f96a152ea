package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups.
var (
	ErrSessionNotFound = errors.New("confirmation session not found")
)

// UnsupportedMediaKindError is returned when the declared media type is
// neither image, audio nor text.
type UnsupportedMediaKindError struct {
	MIME string
}

func (e *UnsupportedMediaKindError) Error() string {
	return fmt.Sprintf("unsupported media kind %q", e.MIME)
}

// MediaTooLargeError is returned when an attachment exceeds the byte ceiling.
type MediaTooLargeError struct {
	Size, Limit int
}

func (e *MediaTooLargeError) Error() string {
	return fmt.Sprintf("media of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// TranscriptionUnavailableError is a recoverable failure of the speech
// service; the user is asked to resend as text.
type TranscriptionUnavailableError struct {
	Err error
}

func (e *TranscriptionUnavailableError) Error() string {
	return fmt.Sprintf("transcription unavailable: %v", e.Err)
}

func (e *TranscriptionUnavailableError) Unwrap() error { return e.Err }

// ExtractionFailedError is terminal for the current request: malformed model
// output after the one re-prompt, a model timeout, or a missing instrument.
type ExtractionFailedError struct {
	Reason string
	Err    error
}

func (e *ExtractionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionFailedError) Unwrap() error { return e.Err }

// QuotaExceededError is a terminal, non-retryable rejection carrying the
// breached limit and an upgrade hint for the chat reply.
type QuotaExceededError struct {
	Limit       string // QuotaHourlyAttempts or QuotaMonthlyTrades
	Plan        string
	Cap         int
	UpgradeHint string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s plan limit reached: %d (%s)", e.Plan, e.Cap, e.Limit)
}

// InvalidTradeDataError marks a domain-constraint violation at commit time.
// Storage is never called when this is returned.
type InvalidTradeDataError struct {
	Field  string
	Reason string
}

func (e *InvalidTradeDataError) Error() string {
	return fmt.Sprintf("invalid trade data: %s: %s", e.Field, e.Reason)
}

// SessionStateError is returned on a disallowed session transition,
// including any action on a terminal or expired session.
type SessionStateError struct {
	SessionID string
	From      SessionStatus
	To        SessionStatus
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("session %s: transition %s -> %s not allowed", e.SessionID, e.From, e.To)
}
