package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"TradeMynd/internal/domain/models"
	"TradeMynd/pkg/config"
	xhttp "TradeMynd/pkg/http"
)

// Client calls the speech-to-text service. It implements
// domain/service.Transcriber.
type Client struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	backoff time.Duration
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Transcriber.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.Transcriber.URL,
		apiKey:  cfg.Transcriber.APIKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		backoff: 500 * time.Millisecond,
	}
}

type transcribeRequest struct {
	AudioB64 string `json:"audio_b64"`
	MIME     string `json:"mime"`
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe converts audio to text. One transient failure is retried after
// a short backoff; a second failure returns TranscriptionUnavailableError so
// the caller can ask the user to resend as text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	if c.baseURL == "" {
		return "", &models.TranscriptionUnavailableError{Err: fmt.Errorf("transcriber url not configured")}
	}

	text, err := c.post(ctx, audio, mime)
	if err == nil {
		return text, nil
	}

	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
		return "", &models.TranscriptionUnavailableError{Err: ctx.Err()}
	}

	text, err = c.post(ctx, audio, mime)
	if err != nil {
		return "", &models.TranscriptionUnavailableError{Err: err}
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, audio []byte, mime string) (string, error) {
	var out transcribeResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/v1/transcribe",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + c.apiKey,
		},
		Body: &transcribeRequest{
			AudioB64: base64.StdEncoding.EncodeToString(audio),
			MIME:     mime,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("transcriber: %s", out.Error)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", fmt.Errorf("transcriber returned empty text")
	}
	return text, nil
}
