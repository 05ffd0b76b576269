package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/config"
)

// EmailClient talks to the email provider for transactional sends and bulk
// campaign submissions.
type EmailClient struct {
	baseURL     string
	apiKey      string
	fromAddress string
	httpClient  *http.Client
}

var (
	_ EmailSender       = (*EmailClient)(nil)
	_ CampaignSubmitter = (*EmailClient)(nil)
)

// NewEmailClient creates an email client from provider config.
func NewEmailClient(cfg config.EmailProviderConfig) *EmailClient {
	return &EmailClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type emailSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type campaignSubmitResponse struct {
	ID string `json:"id"`
}

// Send delivers a single transactional email.
func (c *EmailClient) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", apperrors.ErrBadRequest)
	}

	payload := emailSendRequest{
		From:    c.fromAddress,
		To:      to,
		Subject: subject,
		HTML:    body,
	}

	_, err := c.post(ctx, c.baseURL+"/emails", payload)
	return err
}

// SubmitCampaign submits one bulk campaign send and returns the provider
// email id that later delivery events will reference.
func (c *EmailClient) SubmitCampaign(ctx context.Context, submission CampaignSubmission) (string, error) {
	if submission.SegmentID == "" {
		return "", fmt.Errorf("%w: campaign submission needs a segment id", apperrors.ErrBadRequest)
	}

	body, err := c.post(ctx, c.baseURL+"/campaigns", submission)
	if err != nil {
		return "", err
	}

	var resp campaignSubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.NewFatal(err, "failed to decode campaign submit response")
	}
	return resp.ID, nil
}

func (c *EmailClient) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewFatal(err, "failed to marshal email provider request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return nil, apperrors.NewFatal(err, "failed to create email provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewRetryable(fmt.Errorf("%w: %w", apperrors.ErrTransport, err), "email provider request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 500:
		return nil, apperrors.NewRetryable(
			fmt.Errorf("%w: email provider returned %d: %s", apperrors.ErrTransport, resp.StatusCode, string(body)),
			"email provider unavailable")
	case resp.StatusCode >= 400:
		return nil, apperrors.NewFatal(
			fmt.Errorf("%w: email provider rejected request with %d: %s", apperrors.ErrTransport, resp.StatusCode, string(body)),
			"email provider rejected request")
	}

	return body, nil
}
