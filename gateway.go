package smartedit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Completer is the AI gateway: prompt in, raw text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOllamaModel = "qwen2.5-coder:7b"
)

var errEmptyCompletion = errors.New("empty completion")

type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required (set GEMINI_API_KEY)")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model, temperature: 0.2}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return resp.Text(), nil
}

func classifyGeminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if permanentStatus(code) {
		return newFatalError(fmt.Errorf("gemini: %w", err))
	}
	return fmt.Errorf("gemini: %w", err)
}

type OllamaCompleter struct {
	client *ollama.Client
	model  string
}

// NewOllamaCompleter talks to the server named by OLLAMA_HOST.
func NewOllamaCompleter(model string) (*OllamaCompleter, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaCompleter{client: client, model: strings.TrimPrefix(model, "ollama:")}, nil
}

func (o *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": 0.2,
		},
	}

	var b strings.Builder
	err := o.client.Generate(ctx, req, func(res ollama.GenerateResponse) error {
		b.WriteString(res.Response)
		return nil
	})
	if err != nil {
		var statusErr ollama.StatusError
		if errors.As(err, &statusErr) && permanentStatus(statusErr.StatusCode) {
			return "", newFatalError(fmt.Errorf("ollama: %w", err))
		}
		return "", fmt.Errorf("ollama: %w", err)
	}
	return b.String(), nil
}

func permanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}

type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	// Timeout bounds each attempt.
	Timeout     time.Duration
	BackoffBase time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Timeout:     60 * time.Second,
		BackoffBase: time.Second,
		MaxBackoff:  10 * time.Second,
	}
}

// RetryingCompleter bounds every gateway call with a timeout and retries
// failures that are not fatal.
type RetryingCompleter struct {
	next   Completer
	cfg    RetryConfig
	logger *zap.Logger
}

func NewRetryingCompleter(next Completer, cfg RetryConfig, logger *zap.Logger) *RetryingCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryingCompleter{next: next, cfg: cfg, logger: logger}
}

func (r *RetryingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	backoff := retry.NewExponential(r.cfg.BackoffBase)
	if r.cfg.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(r.cfg.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(r.cfg.MaxAttempts-1), backoff)

	var text string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		}
		defer cancel()

		out, err := r.next.Complete(attemptCtx, prompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errEmptyCompletion
		}
		if err != nil {
			if isFatal(err) || ctx.Err() != nil {
				return err
			}
			r.logger.Warn("AI completion attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.cfg.MaxAttempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return text, nil
}
