package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"
)

// FakeResponse is returned by the gateway when real model calls are
// disabled or the request is flagged as synthetic load-test traffic.
const FakeResponse = "This is a fake response from the LLM."

// Gateway is the single entry point for text generation. Callers own the
// fallback behavior on failure; the gateway never retries.
type Gateway interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// GatewayError marks a transport/service failure of the model backend so
// callers can tell it apart from their own errors.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("llm gateway: %v", e.Err) }

func (e *GatewayError) Unwrap() error { return e.Err }

type syntheticKey struct{}

// WithSynthetic marks the context as belonging to a synthetic (load-test)
// request. The gateway serves such requests from the fake path regardless
// of configuration, so load tests never incur model cost.
func WithSynthetic(ctx context.Context) context.Context {
	return context.WithValue(ctx, syntheticKey{}, true)
}

// IsSynthetic reports whether the context carries the synthetic flag.
func IsSynthetic(ctx context.Context) bool {
	v, _ := ctx.Value(syntheticKey{}).(bool)
	return v
}

// package-level logger for pkg/llm; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/llm. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// OllamaGateway implements Gateway on top of the wrapped Ollama client.
type OllamaGateway struct {
	client  *Client
	model   string
	enabled bool
}

// NewOllamaGateway creates a gateway. When enabled is false every call is
// served by the fake path.
func NewOllamaGateway(client *Client, model string, enabled bool) *OllamaGateway {
	return &OllamaGateway{client: client, model: model, enabled: enabled}
}

func (g *OllamaGateway) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	if !g.enabled || IsSynthetic(ctx) {
		return fakeComplete(ctx)
	}

	segments, err := g.client.Generate(ctx, g.model, systemPrompt, userPrompt, maxTokens, temperature)
	if err != nil {
		return "", &GatewayError{Err: err}
	}
	return joinSegments(segments), nil
}

// fakeComplete simulates model latency in [0.8s, 3.5s] and returns the
// fixed placeholder. Used for load testing without incurring cost.
func fakeComplete(ctx context.Context) (string, error) {
	delay := 800*time.Millisecond + time.Duration(rand.Int63n(int64(2700*time.Millisecond)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", &GatewayError{Err: ctx.Err()}
	}
	return FakeResponse, nil
}

// joinSegments concatenates response segments in order, joined by newline.
// Empty if none.
func joinSegments(segments []string) string {
	return strings.Join(segments, "\n")
}
