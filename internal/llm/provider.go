// Package llm talks to judge and generation models over an
// OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"iter"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single text-in, text-out model call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

func (r Request) messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	return append(msgs, Message{Role: "user", Content: r.Prompt})
}

// Provider is the boundary to a model vendor: give text, get text back.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Stream yields text chunks in generation order. A non-nil error ends
	// the sequence.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}
