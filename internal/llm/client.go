package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dev.manna.backend/internal/config"
	"dev.manna.backend/internal/llm/providers/openrouter"
	"dev.manna.backend/internal/observability/metrics"
)

const (
	healthProbeMessage = "Hello, this is a health check."
	summaryFallback    = "Unable to generate summary via OpenRouter"
)

const systemPreamble = "You are a helpful AI assistant. Use the following context to provide " +
	"relevant and personalized responses. If you are asked to provide information about " +
	"yourself (e.g., who you are, what your name is), respond that you are Manna, an AI " +
	"assistant created to help with user queries."

const summaryPromptFormat = `Please provide a concise summary of the following conversation, focusing on:
1. Main topics discussed
2. Important decisions or conclusions
3. Key information that should be remembered for future conversations

Conversation:
%s

Summary:`

const entityPromptFormat = `Extract important entities from the following conversation.
Return a JSON object with entity types as keys and their details as values.
Focus on: people, places, organizations, dates, preferences, goals, and other important information.

Conversation:
%s

Entities (JSON format):`

// ChatMessage is a single turn sent to the chat completion API
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the model gateway. It shapes prompts for an OpenRouter-compatible
// chat completion provider, records provider metrics and maps failures into
// the gateway error taxonomy.
type Client struct {
	provider    *openrouter.Provider
	model       string
	maxTokens   int
	temperature float64
	log         *logrus.Logger
	metrics     *metrics.Collector
}

// NewClient creates a new chat completion client
func NewClient(cfg *config.Config, log *logrus.Logger, collector *metrics.Collector) *Client {
	provider := openrouter.New(openrouter.Config{
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		SiteURL:  cfg.LLM.SiteURL,
		SiteName: cfg.LLM.SiteName,
		Timeout:  cfg.LLM.Timeout,
	})

	return &Client{
		provider:    provider,
		model:       cfg.LLM.Model,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
		log:         log,
		metrics:     collector,
	}
}

// GenerateResponse produces the assistant reply for the given history. The
// conversation summary and entity memory are folded into a system message so
// the model keeps long-range context. Returns the reply and a token estimate.
func (c *Client) GenerateResponse(ctx context.Context, messages []ChatMessage, summary string, entityMemory map[string]interface{}) (string, int, error) {
	systemContext := buildSystemContext(summary, entityMemory)

	finalMessages := make([]ChatMessage, 0, len(messages)+1)
	if systemContext != "" {
		finalMessages = append(finalMessages, ChatMessage{Role: "system", Content: systemContext})
	}
	finalMessages = append(finalMessages, messages...)

	content, err := c.complete(ctx, "generate", finalMessages)
	if err != nil {
		c.log.WithError(err).Error("Failed to generate response")
		return "", 0, err
	}

	return content, estimateTokens(content), nil
}

// SummarizeConversation condenses a transcript into a short summary. It never
// fails: any error yields the fallback string.
func (c *Client) SummarizeConversation(ctx context.Context, messages []ChatMessage) string {
	prompt := fmt.Sprintf(summaryPromptFormat, transcriptOf(messages))

	content, err := c.complete(ctx, "summarize", []ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		c.log.WithError(err).Error("Failed to summarize conversation")
		return summaryFallback
	}

	return strings.TrimSpace(content)
}

// ExtractEntities pulls structured facts out of a transcript. It never fails:
// any error yields an empty map.
func (c *Client) ExtractEntities(ctx context.Context, messages []ChatMessage) map[string]interface{} {
	prompt := fmt.Sprintf(entityPromptFormat, transcriptOf(messages))

	content, err := c.complete(ctx, "extract_entities", []ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		c.log.WithError(err).Error("Failed to extract entities")
		return map[string]interface{}{}
	}

	// Models often wrap JSON answers in a markdown fence
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	entities := map[string]interface{}{}
	if err := json.Unmarshal([]byte(cleaned), &entities); err != nil {
		c.log.WithField("response", content).Warn("Failed to parse entities JSON")
		return map[string]interface{}{}
	}

	return entities
}

// HealthCheck sends a tiny probe completion and reports whether the provider
// answered with any content.
func (c *Client) HealthCheck(ctx context.Context) bool {
	content, err := c.complete(ctx, "health", []ChatMessage{{Role: "user", Content: healthProbeMessage}})
	if err != nil {
		c.log.WithError(err).Warn("LLM health check failed")
		return false
	}

	return len(content) > 0
}

func (c *Client) complete(ctx context.Context, operation string, messages []ChatMessage) (string, error) {
	start := time.Now()
	content, err := c.provider.Complete(ctx, &openrouter.Request{
		Model:       c.model,
		Messages:    wireMessages(messages),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	c.metrics.ProviderLatency.WithLabelValues(operation, c.model).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues(operation, errorReason(err)).Inc()
		return "", err
	}

	c.metrics.ProviderTokens.WithLabelValues(operation).Add(float64(estimateTokens(content)))
	return content, nil
}

func wireMessages(messages []ChatMessage) []openrouter.Message {
	wire := make([]openrouter.Message, len(messages))
	for i, message := range messages {
		wire[i] = openrouter.Message(message)
	}
	return wire
}

func buildSystemContext(summary string, entityMemory map[string]interface{}) string {
	parts := []string{systemPreamble}

	if summary != "" {
		parts = append(parts, "\nConversation Summary:\n"+summary)
	}

	if len(entityMemory) > 0 {
		keys := make([]string, 0, len(entityMemory))
		for key := range entityMemory {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, key := range keys {
			lines = append(lines, fmt.Sprintf("- %s: %v", key, entityMemory[key]))
		}
		parts = append(parts, "\nImportant Information:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n")
}

func transcriptOf(messages []ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, message := range messages {
		lines = append(lines, message.Role+": "+message.Content)
	}
	return strings.Join(lines, "\n")
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrModelAuth):
		return "auth"
	case errors.Is(err, ErrModelConnection):
		return "connection"
	case errors.Is(err, ErrModelRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrModelAPI):
		return "api"
	default:
		return "other"
	}
}

// estimateTokens approximates token usage at four characters per token,
// never reporting less than one.
func estimateTokens(text string) int {
	tokens := len(text) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
