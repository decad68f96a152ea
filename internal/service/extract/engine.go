package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"TradeMynd/internal/domain/models"
	"TradeMynd/internal/domain/repository"
	domsvc "TradeMynd/internal/domain/service"
	"TradeMynd/internal/service/media"
	"TradeMynd/internal/service/model"
	"TradeMynd/pkg/cache"
	applogger "TradeMynd/pkg/logger"
)

// confidenceFloorMargin keeps floored candidates strictly below the
// auto-accept threshold so they always go through manual confirmation.
const confidenceFloorMargin = 0.05

type Config struct {
	CacheTTL            time.Duration
	AutoAcceptThreshold float64
}

// Engine turns normalized input into a TradeCandidate: one model call, one
// strict re-prompt on malformed output, fingerprint cache in front, every
// attempt appended to the processing log.
type Engine struct {
	invoker     domsvc.ModelInvoker
	transcriber domsvc.Transcriber
	cache       cache.Service
	audit       repository.ProcessingLog
	metrics     repository.Metrics
	cfg         Config
	logger      *applogger.Logger
	now         func() time.Time
}

func NewEngine(
	invoker domsvc.ModelInvoker,
	transcriber domsvc.Transcriber,
	cacheSvc cache.Service,
	audit repository.ProcessingLog,
	metrics repository.Metrics,
	cfg Config,
	logger *applogger.Logger,
) *Engine {
	return &Engine{
		invoker:     invoker,
		transcriber: transcriber,
		cache:       cacheSvc,
		audit:       audit,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// rawExtraction mirrors the JSON object the model is instructed to return.
type rawExtraction struct {
	Instrument *string  `json:"instrument"`
	Direction  *string  `json:"direction"`
	EntryPrice *float64 `json:"entry_price"`
	ExitPrice  *float64 `json:"exit_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Result     *string  `json:"result"`
	RMultiple  *float64 `json:"r_multiple"`
	Emotion    *string  `json:"emotion"`
	Mistakes   []string `json:"mistakes"`
	Notes      *string  `json:"notes"`
	Confidence float64  `json:"confidence"`
}

// Extract produces a candidate from normalized input. The returned error is
// one of the typed extraction errors; the caller maps it to an outbound
// event.
func (e *Engine) Extract(ctx context.Context, msg *models.InboundMessage, in *media.NormalizedInput) (*models.TradeCandidate, error) {
	fp := Fingerprint(in)

	if c, ok := e.cacheLookup(ctx, fp); ok {
		out := *c
		out.CacheDerived = true
		out.InputType = msg.InputType
		out.RawInputRef = msg.ExternalID
		out.CreatedAt = e.now()
		e.metrics.RecordExtraction(string(msg.InputType), "cache_hit")
		return &out, nil
	}

	input := in.Text
	if in.Kind == media.KindAudio {
		transcript, err := e.transcriber.Transcribe(ctx, in.Data, in.MIME)
		if err != nil {
			e.metrics.RecordExtraction(string(msg.InputType), "transcription_failed")
			return nil, err
		}
		input = transcript
	}

	raw, err := e.invokeWithRetry(ctx, msg, in, input)
	if err != nil {
		e.metrics.RecordExtraction(string(msg.InputType), "failed")
		return nil, err
	}

	cand, err := e.toCandidate(raw, msg)
	if err != nil {
		e.metrics.RecordExtraction(string(msg.InputType), "failed")
		return nil, err
	}

	if err := e.cache.Set(ctx, fp, cand, e.cfg.CacheTTL); err != nil {
		e.logger.Warn("extraction cache write failed", applogger.Error(err))
	}
	e.metrics.RecordExtraction(string(msg.InputType), "ok")
	return cand, nil
}

func (e *Engine) cacheLookup(ctx context.Context, fp string) (*models.TradeCandidate, bool) {
	var c models.TradeCandidate
	err := e.cache.Get(ctx, fp, &c)
	if err != nil {
		if err != cache.ErrCacheMiss {
			e.logger.Warn("extraction cache read failed", applogger.Error(err))
		}
		return nil, false
	}
	return &c, true
}

// invokeWithRetry performs the first model call and, if the response cannot
// be parsed, exactly one stricter re-prompt.
func (e *Engine) invokeWithRetry(ctx context.Context, msg *models.InboundMessage, in *media.NormalizedInput, input string) (*rawExtraction, error) {
	promptID, prompt := model.PromptFor(string(in.Kind))

	req := &domsvc.ModelRequest{PromptID: promptID, Prompt: prompt, Input: input}
	if in.Kind == media.KindImage {
		req.Image = in.Data
	}

	resp, err := e.invoker.Invoke(ctx, req)
	e.logAttempt(msg, promptID, resp, 1, err)
	if err != nil {
		return nil, &models.ExtractionFailedError{Reason: "model invocation failed", Err: err}
	}

	raw, perr := parseResponse(resp)
	if perr == nil {
		return raw, nil
	}
	e.logger.Debug("malformed model output, re-prompting",
		applogger.String("user_id", msg.UserID), applogger.Error(perr))

	req.PromptID = model.PromptStrictRetry
	req.Prompt = model.StrictRetryPrompt

	resp, err = e.invoker.Invoke(ctx, req)
	e.logAttempt(msg, model.PromptStrictRetry, resp, 2, err)
	if err != nil {
		return nil, &models.ExtractionFailedError{Reason: "model invocation failed", Err: err}
	}

	raw, perr = parseResponse(resp)
	if perr != nil {
		return nil, &models.ExtractionFailedError{Reason: "malformed model output after retry", Err: perr}
	}
	return raw, nil
}

func (e *Engine) logAttempt(msg *models.InboundMessage, promptID, resp string, attempt int, err error) {
	entry := &repository.AuditEntry{
		RawInputRef: msg.ExternalID,
		UserID:      msg.UserID,
		InputType:   msg.InputType,
		PromptID:    promptID,
		Response:    resp,
		Attempt:     attempt,
		CreatedAt:   e.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	e.audit.Append(entry)
}

// toCandidate validates and converts a parsed response. A missing instrument
// is terminal; a missing direction caps confidence below the auto-accept
// threshold so the trade always goes through manual confirmation.
func (e *Engine) toCandidate(raw *rawExtraction, msg *models.InboundMessage) (*models.TradeCandidate, error) {
	if raw.Instrument == nil || strings.TrimSpace(*raw.Instrument) == "" {
		return nil, &models.ExtractionFailedError{Reason: "no instrument identified"}
	}

	conf := raw.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	c := &models.TradeCandidate{
		Instrument:  strings.ToUpper(strings.TrimSpace(*raw.Instrument)),
		EntryPrice:  toDecimal(raw.EntryPrice),
		ExitPrice:   toDecimal(raw.ExitPrice),
		StopLoss:    toDecimal(raw.StopLoss),
		TakeProfit:  toDecimal(raw.TakeProfit),
		RMultiple:   toDecimal(raw.RMultiple),
		Mistakes:    raw.Mistakes,
		Confidence:  conf,
		InputType:   msg.InputType,
		RawInputRef: msg.ExternalID,
		CreatedAt:   e.now(),
	}
	if raw.Direction != nil {
		c.Direction = models.Direction(strings.ToUpper(*raw.Direction))
	}
	if raw.Result != nil {
		c.Result = models.Result(strings.ToUpper(*raw.Result))
	}
	if raw.Emotion != nil {
		c.Emotion = *raw.Emotion
	}
	if raw.Notes != nil {
		c.Notes = *raw.Notes
	}

	if c.Direction == "" {
		floor := e.cfg.AutoAcceptThreshold - confidenceFloorMargin
		if floor < 0 {
			floor = 0
		}
		if c.Confidence > floor {
			c.Confidence = floor
		}
	}
	return c, nil
}

func toDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

// parseResponse strips markdown fences and decodes the strict JSON object.
// Unknown enum values count as malformed so the stricter re-prompt fires.
func parseResponse(resp string) (*rawExtraction, error) {
	body := stripFences(resp)
	if body == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var raw rawExtraction
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if raw.Direction != nil && !models.Direction(strings.ToUpper(*raw.Direction)).Valid() {
		return nil, fmt.Errorf("unknown direction %q", *raw.Direction)
	}
	if raw.Result != nil && !models.Result(strings.ToUpper(*raw.Result)).Valid() {
		return nil, fmt.Errorf("unknown result %q", *raw.Result)
	}
	return &raw, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and any prose around it.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		// drop the fence line, which may carry "json"
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
