package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/logger"
	"github.com/spigell/resume-guard/internal/utils"
)

const (
	// ProviderName identifies this backend in logs and configuration.
	ProviderName = "openrouter"

	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "mistralai/mistral-7b-instruct"
	DefaultReferer     = "http://localhost:5173"
	DefaultTitle       = "CareerCompass Resume Review"
	defaultTemperature = 0.4
	defaultTimeout     = 30 * time.Second

	contentType      = "application/json"
	maxErrorBodySize = 4 << 10
)

// Config configures the OpenRouter client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Referer     string
	Title       string
	Temperature float64
	Timeout     time.Duration
}

// APIError is a non-2xx answer of the chat completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openrouter: status %d", e.StatusCode)
	}
	return fmt.Sprintf("openrouter: status %d: %s", e.StatusCode, e.Message)
}

// Client calls the OpenRouter chat completions API.
type Client struct {
	http        *http.Client
	apiKey      string
	model       string
	endpoint    string
	referer     string
	title       string
	temperature float64
	logger      *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New returns a Client. Unset fields take the defaults above.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openrouter api key is required")
	}

	c := &Client{
		apiKey:      apiKey,
		model:       orDefault(cfg.Model, DefaultModel),
		endpoint:    strings.TrimRight(orDefault(cfg.BaseURL, DefaultBaseURL), "/") + "/chat/completions",
		referer:     orDefault(cfg.Referer, DefaultReferer),
		title:       orDefault(cfg.Title, DefaultTitle),
		temperature: cfg.Temperature,
	}
	if c.temperature <= 0 {
		c.temperature = defaultTemperature
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.http = &http.Client{Timeout: timeout}
	c.logger = logger.WithReviewer(log, ProviderName, c.model)

	return c, nil
}

// GenerateContent sends prompt as a single user message and returns the first
// choice's content.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("sending chat completion request", zap.String("endpoint", c.endpoint))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.parseError(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}

func (c *Client) parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: utils.TruncateForLog(string(data), 200)}
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
