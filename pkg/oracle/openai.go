package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel      = openai.ChatModelGPT4o
	defaultMaxRetries = 5
	defaultRetryDelay = 2 * time.Second
	defaultTimeout    = 120 * time.Second
)

// OpenAIConfig holds client construction parameters.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for compatible gateways and tests
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// OpenAIClient implements Oracle against an OpenAI-compatible chat endpoint.
type OpenAIClient struct {
	client     openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAI builds a client with bounded exponential backoff on transient
// overload. Retrying is this client's responsibility alone; callers only ever
// see text or a terminal failure.
func NewOpenAI(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		// SDK-level retries stay off; backoff policy lives here.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name identifies the backing implementation.
func (c *OpenAIClient) Name() string { return "openai" }

// Invoke sends the prompt, retrying transient overload with exponential
// backoff up to the configured attempt budget.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error) {
	var result *Result

	err := retry.Do(
		func() error {
			start := time.Now()
			resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: openai.ChatModel(c.model),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage(prompt),
				},
				MaxTokens:   openai.Int(int64(opts.MaxTokens)),
				Temperature: openai.Float(opts.Temperature),
			})
			if err != nil {
				return classify(err)
			}
			if len(resp.Choices) == 0 {
				return &Failure{Kind: FailureTerminal, Err: fmt.Errorf("response contained no choices")}
			}
			result = &Result{
				Text: resp.Choices[0].Message.Content,
				Usage: Usage{
					InputTokens:  int(resp.Usage.PromptTokens),
					OutputTokens: int(resp.Usage.CompletionTokens),
					TotalTokens:  int(resp.Usage.TotalTokens),
				},
				Latency: time.Since(start),
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var f *Failure
			return errors.As(err, &f) && f.Kind == FailureTransient
		}),
	)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			// Exhausted retries surface as terminal to the caller.
			return nil, &Failure{Kind: FailureTerminal, Err: f.Err}
		}
		return nil, &Failure{Kind: FailureTerminal, Err: err}
	}
	return result, nil
}

// classify sorts an API error into transient overload versus terminal.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500 {
			return &Failure{Kind: FailureTransient, Err: err}
		}
		return &Failure{Kind: FailureTerminal, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTerminal, Err: err}
	}
	// Network-level errors are treated as overload and retried.
	return &Failure{Kind: FailureTransient, Err: err}
}
