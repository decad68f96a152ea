package service

import (
	"context"

	"TradeMynd/internal/domain/models"
)

// ModelRequest is one invocation of the language/vision model gateway.
// Image carries canonical JPEG bytes for screenshot prompts; Input carries
// text (raw text or a voice transcript).
type ModelRequest struct {
	PromptID string
	Prompt   string
	Input    string
	Image    []byte
}

// ModelInvoker is the only true network dependency of the core: it returns
// the model's raw structured response or errors on timeout/transport
// failure.
type ModelInvoker interface {
	Invoke(ctx context.Context, req *ModelRequest) (string, error)
}

// Transcriber converts normalized audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime string) (string, error)
}

// PlanProvider resolves a user's entitlement tier for limit selection.
type PlanProvider interface {
	GetPlan(ctx context.Context, userID string) (models.Plan, error)
}
