package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/supportiq-platform/supportiq/internal/config"
	"github.com/supportiq-platform/supportiq/internal/metrics"
)

var (
	// ErrNotConfigured means no API key was provided at startup.
	ErrNotConfigured = errors.New("llm provider not configured")
	// ErrProvider wraps upstream API failures for 502 mapping at the edge.
	ErrProvider = errors.New("llm provider error")
)

// Message is a single turn in a conversation, decoupled from the
// provider's request types so callers never import the SDK.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client talks to an OpenAI-compatible API with retries and metrics.
type Client struct {
	api                *openai.Client
	chatModel          string
	transcriptionModel string
	maxRetries         int
	requestTimeout     time.Duration
}

// NewClient builds a client from config. BaseURL is optional and
// allows pointing at any OpenAI-compatible endpoint.
func NewClient(cfg config.OpenAIConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:                openai.NewClientWithConfig(clientCfg),
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
		maxRetries:         cfg.MaxRetries,
		requestTimeout:     cfg.RequestTimeout,
	}
}

// Complete runs a chat completion and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, nil)
}

// CompleteJSON runs a chat completion in JSON mode so the reply is a
// single JSON object the caller can unmarshal.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.complete(ctx, messages, format)
}

func (c *Client) complete(ctx context.Context, messages []Message, format *openai.ChatCompletionResponseFormat) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:          c.chatModel,
		Messages:       make([]openai.ChatCompletionMessage, 0, len(messages)),
		ResponseFormat: format,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var reply string
	err := c.do(ctx, "chat_completion", func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response: %w", ErrProvider)
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Transcribe converts audio into text. The filename carries the format
// extension the API uses to pick a decoder.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	req := openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: filename,
		Reader:   audio,
	}

	var text string
	err := c.do(ctx, "transcription", func(ctx context.Context) error {
		resp, err := c.api.CreateTranscription(ctx, req)
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// do runs one API call with exponential backoff on transient failures
// and records request metrics.
func (c *Client) do(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)

	start := time.Now()
	err := backoff.Retry(func() error {
		if err := call(ctx); err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			slog.Warn("llm request failed, retrying",
				"operation", operation,
				"error", err,
			)
			return err
		}
		return nil
	}, bo)

	duration := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(operation, "error").Inc()
		return classify(operation, err)
	}

	metrics.LLMRequestsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}

// retryable reports whether an upstream error is worth another attempt.
// Rate limits and server errors are transient, everything else is not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Bare transport errors (connection reset, DNS) land here.
	return true
}

// classify folds provider errors into ErrProvider with a readable message.
func classify(operation string, err error) error {
	if errors.Is(err, ErrProvider) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			operation, apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			operation, reqErr.HTTPStatusCode, string(reqErr.Body), ErrProvider)
	}
	return fmt.Errorf("%s request failed: %v: %w", operation, err, ErrProvider)
}
