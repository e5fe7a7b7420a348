package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/types"
)

// ChatClient talks to an OpenAI- or Claude-compatible chat API depending on
// the configured provider. Endpoints are overridable via environment for
// proxies and compatible local servers.
type ChatClient struct {
	cfg            *store.Config
	openaiEndpoint string
	claudeEndpoint string
	http           *http.Client
}

func NewChatClient(cfg *store.Config) *ChatClient {
	openaiEndpoint := "https://api.openai.com/v1/chat/completions"
	if ep := os.Getenv("OPENAI_API_ENDPOINT"); ep != "" {
		openaiEndpoint = ep
	}
	claudeEndpoint := "https://api.anthropic.com/v1/messages"
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		claudeEndpoint = ep
	}
	return &ChatClient{
		cfg:            cfg,
		openaiEndpoint: openaiEndpoint,
		claudeEndpoint: claudeEndpoint,
		http:           http.DefaultClient,
	}
}

// Complete sends the conversation to the configured provider and returns the
// assistant's text.
func (c *ChatClient) Complete(ctx context.Context, messages []types.ChatMessage) (string, error) {
	switch strings.ToUpper(c.cfg.LLM.Provider) {
	case "OPENAI":
		return c.completeOpenAI(ctx, messages)
	case "CLAUDE":
		return c.completeClaude(ctx, messages)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.LLM.Provider)
	}
}

func (c *ChatClient) completeOpenAI(ctx context.Context, messages []types.ChatMessage) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}

	msgs := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, map[string]string{"role": m.Role, "content": m.Content})
	}

	body := map[string]any{
		"model":       c.cfg.LLM.Model,
		"messages":    msgs,
		"temperature": c.cfg.LLM.Temperature,
		"max_tokens":  c.cfg.LLM.MaxTokens,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", c.openaiEndpoint, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}

func (c *ChatClient) completeClaude(ctx context.Context, messages []types.ChatMessage) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return "", errors.New("CLAUDE_API_KEY missing")
	}

	// The messages API takes the system turn as a top-level field.
	var system string
	msgs := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, map[string]string{"role": m.Role, "content": m.Content})
	}

	body := map[string]any{
		"model":      c.cfg.LLM.Model,
		"max_tokens": c.cfg.LLM.MaxTokens,
		"messages":   msgs,
	}
	if system != "" {
		body["system"] = system
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", c.claudeEndpoint, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("claude http %d: %s", resp.StatusCode, string(respBody))
	}

	var r struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Content) == 0 {
		return "", errors.New("no content")
	}
	return strings.TrimSpace(r.Content[0].Text), nil
}
