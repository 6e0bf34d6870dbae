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
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Provider failure classes. HTTP statuses and transport errors are folded
// into these four so callers can branch without knowing the wire details.
var (
	ErrAuth        = errors.New("model provider authentication failed")
	ErrConnection  = errors.New("could not connect to model provider")
	ErrRateLimited = errors.New("model provider rate limit exceeded")
	ErrAPI         = errors.New("model provider API error")
)

// Message is a single chat turn in a completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the OpenRouter chat completion payload
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Config carries the connection settings for one provider instance
type Config struct {
	APIKey   string
	BaseURL  string
	SiteURL  string
	SiteName string
	Timeout  time.Duration
}

// Provider is a minimal OpenRouter chat completion client. Each call is one
// blocking round trip with no retry or backoff; transient failures surface
// immediately.
type Provider struct {
	apiKey   string
	baseURL  string
	siteURL  string
	siteName string
	client   *http.Client
}

// New creates a provider, applying defaults for base URL and timeout
func New(cfg Config) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Provider{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
		client:   &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the endpoint the provider talks to
func (p *Provider) BaseURL() string {
	return p.baseURL
}

// Complete sends one chat completion request and returns the content of the
// first choice.
func (p *Provider) Complete(ctx context.Context, req *Request) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	// OpenRouter uses these for app attribution on their dashboard
	if p.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", p.siteURL)
	}
	if p.siteName != "" {
		httpReq.Header.Set("X-Title", p.siteName)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: check your API key", ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: try again later", ErrRateLimited)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: HTTP %d - %s", ErrAPI, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if completion.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPI, completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrAPI)
	}

	return completion.Choices[0].Message.Content, nil
}
