package model

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	domsvc "TradeMynd/internal/domain/service"
	"TradeMynd/pkg/config"
	xhttp "TradeMynd/pkg/http"
)

// Client talks to the model gateway over HTTP. It implements
// domain/service.ModelInvoker.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *xhttp.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Model.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.Model.GatewayURL,
		apiKey:  cfg.Model.APIKey,
		model:   cfg.Model.Name,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type generateRequest struct {
	Model    string `json:"model,omitempty"`
	PromptID string `json:"prompt_id,omitempty"`
	Prompt   string `json:"prompt"`
	Input    string `json:"input,omitempty"`
	ImageB64 string `json:"image_b64,omitempty"`
}

type generateResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Invoke posts one generation request and returns the raw model output.
// A non-2xx status, transport error or deadline is surfaced to the caller,
// which owns the retry policy.
func (c *Client) Invoke(ctx context.Context, req *domsvc.ModelRequest) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("model gateway url not configured")
	}

	body := &generateRequest{
		Model:    c.model,
		PromptID: req.PromptID,
		Prompt:   req.Prompt,
		Input:    req.Input,
	}
	if len(req.Image) > 0 {
		body.ImageB64 = base64.StdEncoding.EncodeToString(req.Image)
	}

	var out generateResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/v1/generate",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + c.apiKey,
		},
		Body: body,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("model invoke: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("model invoke: %s", out.Error)
	}
	return out.Output, nil
}
