package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-bot-builder/internal/config"
	"github.com/tbourn/go-bot-builder/internal/observability"
)

// OpenAI is a Completer backed by the OpenAI chat completions API (or any
// API-compatible endpoint reachable at BaseURL).
type OpenAI struct {
	BaseURL    string
	Timeout    time.Duration // per attempt
	Attempts   uint
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// NewOpenAI builds a completer from config.
func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	return &OpenAI{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		Attempts:   uint(cfg.RetryAttempts),
		RetryDelay: 500 * time.Millisecond,
	}
}

func (o *OpenAI) client(apiKey string) *openai.Client {
	cc := openai.DefaultConfig(apiKey)
	if base := strings.TrimRight(o.BaseURL, "/"); base != "" {
		cc.BaseURL = base
	}
	if o.HTTPClient != nil {
		cc.HTTPClient = o.HTTPClient
	}
	return openai.NewClientWithConfig(cc)
}

// Complete sends req and returns the first choice's content. Rate limiting
// and 5xx answers are retried; everything else fails immediately.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	tr := otel.Tracer("llm/OpenAI")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
		),
	)
	defer span.End()

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	oReq := openai.ChatCompletionRequest{Model: req.Model, Messages: msgs}
	cl := o.client(req.APIKey)

	attempts := o.Attempts
	if attempts == 0 {
		attempts = 1
	}

	start := time.Now()
	var content string
	err := retry.Do(
		func() error {
			actx := ctx
			if o.Timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, o.Timeout)
				defer cancel()
			}
			resp, err := cl.CreateChatCompletion(actx, oReq)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return retry.Unrecoverable(ErrEmptyCompletion)
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(o.RetryDelay),
		retry.RetryIf(Retryable),
		retry.LastErrorOnly(true),
	)
	observability.LLMLatency.
		WithLabelValues(req.Model, statusLabel(err)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai chat: %w", err)
	}
	return content, nil
}

// StatusCode extracts the HTTP status of an API failure, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Retryable reports whether err is a transient upstream failure (429, 5xx).
func Retryable(err error) bool {
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= 500
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	return "error"
}
