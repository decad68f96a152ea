package repository

import (
	"context"
	"time"

	"TradeMynd/internal/domain/models"
)

// TradeStore persists committed trades and answers the monthly-commit count
// the quota governor needs.
type TradeStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	CreateTrade(ctx context.Context, t *models.Trade) (*models.Trade, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	Health(ctx context.Context) error
	Close() error
}

// TradeQuery reads back committed trades for the journal surface.
type TradeQuery interface {
	RecentTrades(ctx context.Context, userID string, limit int, from time.Time) ([]*models.Trade, error)
}

// SessionStore holds pending-confirmation sessions. Status transitions go
// through CompareAndSwap so a confirm racing an expiry resolves
// deterministically: first writer wins, the loser gets a state error.
type SessionStore interface {
	Create(ctx context.Context, s *models.ConfirmationSession) error
	Get(ctx context.Context, id string) (*models.ConfirmationSession, error)
	// CompareAndSwap moves the session from `from` to `to`, optionally
	// replacing the held candidate (nil keeps it). Returns the updated
	// session, or *models.SessionStateError if the stored status differs.
	CompareAndSwap(ctx context.Context, id string, from, to models.SessionStatus, candidate *models.TradeCandidate) (*models.ConfirmationSession, error)
	// PendingBefore lists sessions still PENDING whose TTL elapsed at t.
	PendingBefore(ctx context.Context, t time.Time) ([]*models.ConfirmationSession, error)
	Close() error
}

// EventSink delivers outbound events to the messaging collaborator.
type EventSink interface {
	Emit(ctx context.Context, e *models.Event) error
	Close() error
}

// MessageStream is a persistent inbound feed of chat messages, e.g. the
// WebSocket connection to the bot gateway.
type MessageStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.InboundMessage, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ProcessingLog is the append-only audit trail of extraction attempts.
// Append must never block or fail the extraction path.
type ProcessingLog interface {
	Append(entry *AuditEntry)
	Close() error
}

// AuditEntry captures one model round-trip for audit/debugging.
type AuditEntry struct {
	RawInputRef string
	UserID      string
	InputType   models.InputType
	PromptID    string
	Response    string
	Attempt     int
	Error       string
	CreatedAt   time.Time
}

// Metrics records pipeline observations.
type Metrics interface {
	RecordExtraction(inputType, outcome string)
	RecordCommit(source string)
	RecordQuotaRejection(limit string)
	RecordSessionTransition(to string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
