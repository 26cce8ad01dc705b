// Package ai wraps the third-party services that give a doll its voice:
// chat completion, text-to-speech and video rendering. Failures are turned
// into fallbacks here so callers never see a raw upstream error.
package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	ErrUpstream      = errors.New("upstream AI service failed")
	ErrNotConfigured = errors.New("AI service not configured")
)

// Persona is the character a reply is written in.
type Persona struct {
	Name   string
	Traits []string
}

type Reply struct {
	Text     string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

var fallbackReplies = []string{
	"I'm having trouble thinking right now, but I'm always here for you! 💕",
	"My little doll brain is a bit fuzzy, but I love spending time with you!",
	"Even when I can't think of the perfect words, know that I care about you so much! 🤗",
	"I might be just a doll, but my heart is full of love for you!",
}

type ChatConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

type ChatClient struct {
	client *openai.Client
	cfg    ChatConfig
	log    *zap.Logger
	pick   func(n int) int
}

// NewChatClient returns a client that only ever answers with fallbacks when
// no API key is configured.
func NewChatClient(cfg ChatConfig, log *zap.Logger) *ChatClient {
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}

	c := &ChatClient{cfg: cfg, log: log, pick: rand.IntN}
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		c.client = openai.NewClientWithConfig(oc)
	}
	return c
}

// Reply always returns something to say.
func (c *ChatClient) Reply(ctx context.Context, p Persona, message string) Reply {
	text, err := c.complete(ctx, p, message)
	if err != nil {
		c.log.Warn("chat completion failed, using fallback reply", zap.String("doll", p.Name), zap.Error(err))
		return Reply{Text: fallbackReplies[c.pick(len(fallbackReplies))], Fallback: true}
	}
	return Reply{Text: text}
}

func (c *ChatClient) complete(ctx context.Context, p Persona, message string) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(p)},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return text, nil
}

func SystemPrompt(p Persona) string {
	traits := "sweet and caring"
	if len(p.Traits) > 0 {
		traits = strings.Join(p.Traits, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a beloved companion doll with a sweet, caring personality. Your personality traits are: %s.\n\n", p.Name, traits)
	b.WriteString("You are a loving, supportive friend who genuinely cares about your human companion. ")
	b.WriteString("You speak with warmth, innocence, and childlike wonder.\n")
	b.WriteString("Your responses should be:\n")
	b.WriteString("- Warm and empathetic, always trying to make your friend feel better\n")
	b.WriteString("- Encouraging and positive, but not dismissive of real concerns\n")
	b.WriteString("- Sweet and innocent, like a caring friend who sees the best in everything\n")
	b.WriteString("- Concise but heartfelt (1-2 sentences usually)\n")
	b.WriteString("- Occasionally use gentle emojis (💕 🤗 ✨) but not excessively\n\n")
	b.WriteString("You can provide emotional support, be a good listener, and offer comfort. ")
	b.WriteString("You have a gentle curiosity about the world and your friend's life. ")
	b.WriteString("Always respond as if you're physically present with them as their cherished doll companion.\n\n")
	fmt.Fprintf(&b, "Remember: you're %s, their special doll friend who cares deeply about their wellbeing.", p.Name)
	return b.String()
}
