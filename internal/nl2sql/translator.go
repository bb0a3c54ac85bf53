// Package nl2sql turns HR questions into intermediate queries with a language
// model.
package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/llm"
)

type Translator interface {
	Translate(ctx context.Context, question string) (hrquery.Query, error)
}

// TranslationParseError means the model answered but its reply was not a
// usable query. Callers ask the user to rephrase.
type TranslationParseError struct {
	Raw string
	Err error
}

func (e *TranslationParseError) Error() string {
	return fmt.Sprintf("could not understand the query: %v", e.Err)
}

func (e *TranslationParseError) Unwrap() error {
	return e.Err
}

type LLMTranslator struct {
	Model llm.Completer
	Now   func() time.Time
}

func NewLLMTranslator(model llm.Completer) *LLMTranslator {
	return &LLMTranslator{Model: model, Now: time.Now}
}

func (t *LLMTranslator) Translate(ctx context.Context, question string) (hrquery.Query, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return hrquery.Query{}, fmt.Errorf("question is required")
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	reply, err := t.Model.Complete(ctx, llm.Request{
		System:      buildPrompt(now()),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: question}},
		Temperature: llm.Float(0),
		JSON:        true,
	})
	if err != nil {
		return hrquery.Query{}, err
	}
	return parseReply(reply)
}

func parseReply(reply string) (hrquery.Query, error) {
	body := stripCodeFence(reply)
	q, err := hrquery.Parse([]byte(body))
	if err != nil {
		// models sometimes wrap the object in prose
		start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return hrquery.Query{}, &TranslationParseError{Raw: reply, Err: err}
		}
		q, err = hrquery.Parse([]byte(body[start : end+1]))
		if err != nil {
			return hrquery.Query{}, &TranslationParseError{Raw: reply, Err: err}
		}
	}
	if q.Operation == nil && q.Table == "" {
		return hrquery.Query{}, &TranslationParseError{Raw: reply, Err: fmt.Errorf("reply names no table")}
	}
	return q, nil
}

func stripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```JSON")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
