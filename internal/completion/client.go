// Package completion talks to the external text-generation service. It sends a
// role-tagged message list with a model and temperature and returns the text of
// the first choice. Nothing else in the response is consumed.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Role tags a message in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	Model       string
	Temperature float64
	Messages    []Message
}

// Client is the narrow interface the generation pipeline depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNoContent is wrapped by Error when the service answered without any text.
var ErrNoContent = errors.New("no content generated")

// Error is a failed completion call carrying a message fit for end users.
type Error struct {
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion: %s (status %d)", e.Message, e.StatusCode)
	}
	return "completion: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures the OpenAI-backed client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration // per-call deadline; zero means none
}

// OpenAIClient implements Client with the OpenAI chat completions API.
type OpenAIClient struct {
	client  openai.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAIClient creates a client. Automatic retries are disabled: callers
// decide whether to try again.
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Complete sends req and returns choices[0].message.content.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toParams(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Warn("completion call failed",
			zap.String("model", req.Model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return "", classify(err)
	}
	c.logger.Debug("completion call finished",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
	)

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &Error{Message: "no content generated", Err: ErrNoContent}
	}
	return resp.Choices[0].Message.Content, nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: "the generation service took too long to respond", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Message: "generation was cancelled", Err: err}
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := "the generation service returned an error"
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			msg = "the generation service rejected the API key"
		case apiErr.StatusCode == 429:
			msg = "the generation service is rate limiting requests"
		case apiErr.StatusCode >= 500:
			msg = "the generation service is unavailable"
		}
		return &Error{StatusCode: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &Error{Message: "could not reach the generation service", Err: err}
}
