package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"auditgelap-service/config"
	"auditgelap-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultModel      = "gemini-1.5-pro"
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	maxRetries        = 3
	initialRetryDelay = 1 * time.Second
	requestTimeout    = 60 * time.Second
)

// Client calls the Gemini generateContent API and decodes the structured JSON
// replies the prompts ask for.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a Gemini client
func NewClient(cfg config.GeminiConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  util.NamedLogger("gemini"),
	}
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// generate posts a prompt and unmarshals the model's JSON reply into out.
// Retries with exponential backoff on rate limits and server errors.
func (c *Client) generate(ctx context.Context, promptName, prompt string, out interface{}) error {
	start := time.Now()
	defer func() {
		util.ModelRequestLatency.WithLabelValues(promptName).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      0.7,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	delay := initialRetryDelay
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		raw, retryable, err := c.doRequest(ctx, url, body)
		if err != nil {
			lastErr = err
			if !retryable {
				break
			}
			c.logger.Warn("Model request failed, retrying",
				zap.String("prompt", promptName),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		if err := json.Unmarshal(raw, out); err != nil {
			// The model occasionally produces malformed JSON despite the
			// response mime type; treat it like a transient failure.
			lastErr = fmt.Errorf("failed to decode model output: %w", err)
			c.logger.Warn("Model returned malformed JSON, retrying",
				zap.String("prompt", promptName),
				zap.Int("attempt", attempt+1))
			continue
		}

		return nil
	}

	util.ModelRequestFailuresTotal.WithLabelValues(promptName).Inc()
	return fmt.Errorf("model request %s failed after %d attempts: %w", promptName, maxRetries, lastErr)
}

// doRequest performs one generateContent call and extracts the first
// candidate's text. The bool reports whether a failure is retryable.
func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr geminiError
		_ = json.Unmarshal(respBody, &apiErr)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("gemini API status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, true, fmt.Errorf("failed to decode response envelope: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, true, fmt.Errorf("empty model response")
	}

	return []byte(parsed.Candidates[0].Content.Parts[0].Text), false, nil
}

// GenerateAudit runs the audit prompt and returns the structured diagnosis.
func (c *Client) GenerateAudit(ctx context.Context, in AuditInput) (*AuditOutput, error) {
	prompt, err := buildAuditPrompt(in)
	if err != nil {
		return nil, err
	}

	var out AuditOutput
	if err := c.generate(ctx, "audit", prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyExecution judges an execution-proof claim.
func (c *Client) VerifyExecution(ctx context.Context, in VerifyExecutionInput) (*VerifyExecutionOutput, error) {
	prompt, err := buildVerifyPrompt(in)
	if err != nil {
		return nil, err
	}

	var out VerifyExecutionOutput
	if err := c.generate(ctx, "verify_execution", prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcknowledgeExecution produces the cold one-line acknowledgement for a
// completed command.
func (c *Client) AcknowledgeExecution(ctx context.Context, in AcknowledgeInput) (*AcknowledgeOutput, error) {
	prompt, err := buildAcknowledgePrompt(in)
	if err != nil {
		return nil, err
	}

	var out AcknowledgeOutput
	if err := c.generate(ctx, "acknowledge", prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateWeeklyRoast produces the weekly failure report.
func (c *Client) GenerateWeeklyRoast(ctx context.Context, in WeeklyRoastInput) (*WeeklyRoastOutput, error) {
	prompt, err := buildWeeklyRoastPrompt(in)
	if err != nil {
		return nil, err
	}

	var out WeeklyRoastOutput
	if err := c.generate(ctx, "weekly_roast", prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
