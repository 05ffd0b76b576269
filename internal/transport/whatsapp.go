package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// WhatsAppClient sends chat messages through the WhatsApp Cloud API.
type WhatsAppClient struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

var _ ChatSender = (*WhatsAppClient)(nil)

// NewWhatsAppClient creates a chat sender from provider config.
func NewWhatsAppClient(cfg config.ChatProviderConfig) *WhatsAppClient {
	return &WhatsAppClient{
		baseURL:       cfg.BaseURL,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type waTextBody struct {
	Body string `json:"body"`
}

type waSendRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             waTextBody `json:"text"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText sends a plain text message and returns the provider message id.
// Provider-side failures (5xx, network) come back retryable so the caller can
// redeliver; rejected requests (4xx) are fatal.
func (c *WhatsAppClient) SendText(ctx context.Context, to, text string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("%w: recipient phone is required", apperrors.ErrBadRequest)
	}

	payload, err := json.Marshal(waSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             waTextBody{Body: text},
	})
	if err != nil {
		return "", apperrors.NewFatal(err, "failed to marshal chat send request")
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return "", apperrors.NewFatal(err, "failed to create chat send request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewRetryable(fmt.Errorf("%w: %w", apperrors.ErrTransport, err), "chat provider request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 500:
		return "", apperrors.NewRetryable(
			fmt.Errorf("%w: chat provider returned %d: %s", apperrors.ErrTransport, resp.StatusCode, string(body)),
			"chat provider unavailable")
	case resp.StatusCode >= 400:
		return "", apperrors.NewFatal(
			fmt.Errorf("%w: chat provider rejected request with %d: %s", apperrors.ErrTransport, resp.StatusCode, string(body)),
			"chat provider rejected send")
	}

	var sendResp waSendResponse
	if err := json.Unmarshal(body, &sendResp); err != nil {
		return "", apperrors.NewFatal(err, "failed to decode chat provider response")
	}
	if len(sendResp.Messages) == 0 {
		logger.FromContext(ctx).Warn("Chat provider response carried no message id", zap.String("to", to))
		return "", nil
	}

	return sendResp.Messages[0].ID, nil
}
