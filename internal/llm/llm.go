// Package llm wraps the text-completion providers used by the chat pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System   string
	Messages []Message
	// Temperature overrides the client default when set.
	Temperature *float64
	// JSON asks the provider for a JSON object reply where supported.
	JSON bool
}

// Completer is a prompt-in, text-out language model. Replies are not
// guaranteed to be valid JSON even when Request.JSON is set.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Error marks a failure talking to the model provider.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s completion: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func UserPrompt(text string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: text}}}
}

func Float(value float64) *float64 {
	return &value
}
