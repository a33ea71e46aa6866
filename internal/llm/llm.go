// Package llm is the text generation endpoint the trigger scheduler calls.
// Any OpenAI-compatible chat completions API can back it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrNoConnection is returned when neither settings nor configuration
	// carry an API key.
	ErrNoConnection = errors.New("llm: no API connection configured")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request asks for one completion. Prompt is sent as a single user message
// after Messages when both are set.
type Request struct {
	Prompt      string
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Response is a completion with its token cost. Estimated is true when the
// provider did not report usage.
type Response struct {
	Text       string
	Model      string
	TokensUsed int
	Estimated  bool
}

// Generator produces text. Callers treat any error as "no content".
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm: http %d: %s", e.StatusCode, e.Body)
}

func (r Request) messages() []Message {
	out := make([]Message, 0, len(r.Messages)+1)
	out = append(out, r.Messages...)
	if r.Prompt != "" {
		out = append(out, Message{Role: "user", Content: r.Prompt})
	}
	return out
}

// EstimateTokens approximates a token count: four ASCII bytes or one
// non-ASCII rune per token.
func EstimateTokens(texts ...string) int {
	ascii, wide := 0, 0
	for _, s := range texts {
		for _, r := range s {
			if r < utf8.RuneSelf {
				ascii++
			} else {
				wide++
			}
		}
	}
	return (ascii+3)/4 + wide
}
