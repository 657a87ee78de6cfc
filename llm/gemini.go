// Package llm wraps the generative model behind a small completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"google.golang.org/api/option"
)

// Request is one completion call.
type Request struct {
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

type Config struct {
	APIKey      string
	Model       string
	CallTimeout time.Duration
}

// Client calls the Gemini API with a per-call timeout behind a circuit
// breaker. Failed calls are never retried here; the workflow decides what
// a failure means.
type Client struct {
	log     *slog.Logger
	client  *genai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

func NewClient(ctx context.Context, log *slog.Logger, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generative model API key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "generative-model",
		Interval: 10 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		log:     log,
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		breaker: breaker,
	}, nil
}

// Complete runs one prompt through the model and returns the raw text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(c.model)
		model.SetTemperature(req.Temperature)
		model.SetMaxOutputTokens(req.MaxTokens)

		resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
		if err != nil {
			return nil, err
		}

		return extractText(resp)
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	return out.(string), nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("model returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", errors.New("model returned no text parts")
	}

	return text, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
