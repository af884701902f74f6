package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway sends SMS through a JSON API in the Termii style:
// POST {to, from, sms, type, channel, api_key}, reply {message_id, message}.
type HTTPGateway struct {
	apiURL   string
	apiKey   string
	senderID string
	client   *http.Client
}

// HTTPConfig holds configuration for the HTTP SMS gateway
type HTTPConfig struct {
	APIURL   string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

// NewHTTPGateway creates a new HTTP SMS gateway client
func NewHTTPGateway(config HTTPConfig) *HTTPGateway {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		apiURL:   strings.TrimRight(config.APIURL, "/"),
		apiKey:   config.APIKey,
		senderID: config.SenderID,
		client:   &http.Client{Timeout: timeout},
	}
}

// SendRequest is the outbound payload
type SendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

// SendResponse is the provider reply
type SendResponse struct {
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

// Send implements Gateway
func (g *HTTPGateway) Send(ctx context.Context, phone, message string) (string, error) {
	payload, err := json.Marshal(SendRequest{
		To:      strings.TrimPrefix(phone, "+"),
		From:    g.senderID,
		SMS:     message,
		Type:    "plain",
		Channel: "generic",
		APIKey:  g.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/sms/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read sms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sendResp SendResponse
	if err := json.Unmarshal(body, &sendResp); err != nil {
		return "", fmt.Errorf("failed to parse sms response: %w", err)
	}
	if sendResp.MessageID == "" {
		return "", fmt.Errorf("sms gateway rejected message: %s", sendResp.Message)
	}

	return sendResp.MessageID, nil
}

// GetName implements Gateway
func (g *HTTPGateway) GetName() string {
	return "http"
}
