// Package ocr talks to the external document-understanding service and
// resolves canonical field names against its output.
package ocr

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

const defaultAPIVersion = "2024-11-30"

// ErrAnalysisFailed indicates the OCR call did not complete successfully.
// Fatal for that receipt; the caller's job layer owns any retry.
var ErrAnalysisFailed = errors.New("document analysis failed")

// AnalyzedDocument is the service output for one image: a field→content
// map plus the raw recognized text. Consumed immediately, never persisted.
type AnalyzedDocument struct {
	Fields  map[string]string
	RawText string
}

// defaultMaxPoll bounds how long one analyze operation may sit in
// "running" before the client gives up on it.
const defaultMaxPoll = 3 * time.Minute

// Client submits images to the document-analysis service. One call per
// image; the analyze operation is polled until it completes.
type Client struct {
	endpoint     string
	apiKey       string
	apiVersion   string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPoll      time.Duration
	logger       *zap.Logger
}

// NewClient creates a document-analysis client.
func NewClient(endpoint, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: defaultAPIVersion,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // analysis of dense receipts is slow
		},
		pollInterval: time.Second,
		maxPoll:      defaultMaxPoll,
		logger:       logger,
	}
}

type analyzeRequest struct {
	Base64Source string `json:"base64Source"`
}

type analyzeField struct {
	Content     string `json:"content"`
	ValueString string `json:"valueString"`
}

func (f analyzeField) value() string {
	if f.Content != "" {
		return f.Content
	}
	return f.ValueString
}

type analyzeResponse struct {
	Status string `json:"status"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AnalyzeResult struct {
		Content   string `json:"content"`
		Documents []struct {
			Fields map[string]analyzeField `json:"fields"`
		} `json:"documents"`
	} `json:"analyzeResult"`
}

// Analyze submits image bytes to the given model and waits for the
// operation to complete. Any non-success response or timeout wraps
// ErrAnalysisFailed; no retries happen here.
func (c *Client) Analyze(ctx context.Context, imageBytes []byte, modelID string) (*AnalyzedDocument, error) {
	opURL, err := c.submit(ctx, imageBytes, modelID)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, opURL)
}

func (c *Client) submit(ctx context.Context, imageBytes []byte, modelID string) (string, error) {
	url := fmt.Sprintf("%s/documentModels/%s:analyze?api-version=%s", c.endpoint, modelID, c.apiVersion)

	body, err := json.Marshal(analyzeRequest{Base64Source: base64.StdEncoding.EncodeToString(imageBytes)})
	if err != nil {
		return "", fmt.Errorf("marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit analyze: %v: %w", err, ErrAnalysisFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit analyze: status %d: %s: %w", resp.StatusCode, string(respBody), ErrAnalysisFailed)
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("submit analyze: missing Operation-Location header: %w", ErrAnalysisFailed)
	}
	return opURL, nil
}

func (c *Client) poll(ctx context.Context, opURL string) (*AnalyzedDocument, error) {
	deadline := time.After(c.maxPoll)
	for {
		result, done, err := c.fetchResult(ctx, opURL)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("analysis cancelled: %v: %w", ctx.Err(), ErrAnalysisFailed)
		case <-deadline:
			return nil, fmt.Errorf("analysis still running after %s: %w", c.maxPoll, ErrAnalysisFailed)
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, opURL string) (*AnalyzedDocument, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create result request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch result: %v: %w", err, ErrAnalysisFailed)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read result: %v: %w", err, ErrAnalysisFailed)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("fetch result: status %d: %s: %w", resp.StatusCode, string(respBody), ErrAnalysisFailed)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode result: %v: %w", err, ErrAnalysisFailed)
	}

	switch parsed.Status {
	case "succeeded":
		return toDocument(&parsed), true, nil
	case "failed":
		return nil, false, fmt.Errorf("analysis failed: %s %s: %w",
			parsed.Error.Code, parsed.Error.Message, ErrAnalysisFailed)
	default:
		// notStarted / running
		return nil, false, nil
	}
}

func toDocument(resp *analyzeResponse) *AnalyzedDocument {
	doc := &AnalyzedDocument{
		Fields:  make(map[string]string),
		RawText: resp.AnalyzeResult.Content,
	}
	for _, d := range resp.AnalyzeResult.Documents {
		for name, field := range d.Fields {
			if v := field.value(); v != "" {
				doc.Fields[name] = v
			}
		}
	}
	return doc
}
