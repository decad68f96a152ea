package chatgate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"TradeMynd/internal/domain/models"
	drepo "TradeMynd/internal/domain/repository"
	applogger "TradeMynd/pkg/logger"
)

// Stream implements a MessageStream backed by the chat gateway WebSocket.
// The gateway pushes one frame per user message, attachments inlined as
// base64.
type Stream struct {
	websocketURL   string
	token          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

func New(websocketURL, token string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) drepo.MessageStream {
	return &Stream{
		websocketURL:   websocketURL,
		token:          token,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("chatgate connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	s.logger.Info("chatgate connected")
	return nil
}

// gateFrame is the wire shape of one inbound chat message.
type gateFrame struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	InputType  string `json:"input_type"`
	Text       string `json:"text,omitempty"`
	PayloadB64 string `json:"payload_b64,omitempty"`
	MIME       string `json:"mime,omitempty"`
	ExternalID string `json:"external_id"`
	SentAtMS   int64  `json:"sent_at_ms"`
}

// Read streams inbound messages and errors. Frames that do not decode as
// messages are skipped; a read error ends both channels and the caller
// decides whether to Reconnect.
func (s *Stream) Read(ctx context.Context) (<-chan *models.InboundMessage, <-chan error) {
	msgs := make(chan *models.InboundMessage, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(msgs)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("chatgate conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("chatgate read: %w", err)
					return
				}
				var f gateFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-message frames
					continue
				}
				if f.Type != "message" {
					continue
				}
				msg, err := f.toInbound()
				if err != nil {
					s.logger.Warn("dropping undecodable frame",
						applogger.String("external_id", f.ExternalID), applogger.Error(err))
					continue
				}
				select {
				case msgs <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgs, errs
}

func (f *gateFrame) toInbound() (*models.InboundMessage, error) {
	it := models.InputType(f.InputType)
	if !it.Valid() {
		return nil, fmt.Errorf("unknown input type %q", f.InputType)
	}
	msg := &models.InboundMessage{
		UserID:       f.UserID,
		InputType:    it,
		Text:         f.Text,
		DeclaredMIME: f.MIME,
		ExternalID:   f.ExternalID,
		ReceivedAt:   time.UnixMilli(f.SentAtMS),
	}
	if f.PayloadB64 != "" {
		payload, err := base64.StdEncoding.DecodeString(f.PayloadB64)
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		msg.Payload = payload
	}
	return msg, nil
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	return s.Connect(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }
