package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultEmailBaseURL = "https://api.resend.com"

// ErrDeliveryFailed indicates the email send did not succeed. Callers
// log it and move on; delivery is best-effort and never fails a batch.
var ErrDeliveryFailed = errors.New("email delivery failed")

// EmailConfig holds the transactional email API settings.
type EmailConfig struct {
	APIKey  string
	From    string
	BaseURL string // optional override for tests
	Logger  *zap.Logger
}

// EmailDispatcher posts exports to a transactional email API as
// base64-encoded attachments.
type EmailDispatcher struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEmailDispatcher creates a dispatcher.
func NewEmailDispatcher(cfg EmailConfig) *EmailDispatcher {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultEmailBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailDispatcher{
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type emailAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type emailPayload struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Attachments []emailAttachment `json:"attachments"`
}

// Send posts the attachment to the email API. The payload is fully built
// before any bytes go on the wire, so cancellation never sends a partial
// email. Failures wrap ErrDeliveryFailed.
func (d *EmailDispatcher) Send(ctx context.Context, to, subject, htmlBody, attachmentName string, attachment []byte) error {
	payload := emailPayload{
		From:    d.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
		Attachments: []emailAttachment{
			{Filename: attachmentName, Content: base64.StdEncoding.EncodeToString(attachment)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %v: %w", err, ErrDeliveryFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		d.logger.Warn("email API rejected send",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("send email: status %d: %w", resp.StatusCode, ErrDeliveryFailed)
	}

	d.logger.Info("export emailed",
		zap.String("to", to),
		zap.String("attachment", attachmentName),
		zap.Int("attachment_bytes", len(attachment)))
	return nil
}
