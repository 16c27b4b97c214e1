// Package llm talks to the chat completion API on behalf of a tenant. Each
// request carries the bot owner's own API key, so clients are built per call.
package llm

import (
	"context"
	"errors"

	"github.com/tbourn/go-bot-builder/internal/prompt"
)

// ErrEmptyCompletion is returned when the API answers without any choice.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Request is one chat completion call.
type Request struct {
	APIKey   string
	Model    string
	Messages []prompt.Message
}

// Completer produces the assistant reply for an assembled message list.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
