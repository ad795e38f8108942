// Package llmtest provides deterministic model and embedder doubles for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Rule answers prompts containing Match with Reply, or fails with Err.
type Rule struct {
	Match string
	Reply string
	Err   error
}

// Model is a scripted llms.Model that records every prompt it sees.
// The first rule whose Match occurs in the prompt wins; without a match
// Default is returned.
type Model struct {
	Rules   []Rule
	Default string

	mu      sync.Mutex
	prompts []string
}

var _ llms.Model = (*Model)(nil)

// ErrNoRule is returned when no rule matches and Default is empty.
var ErrNoRule = errors.New("llmtest: no scripted reply")

// GenerateContent implements llms.Model.
func (m *Model) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var sb strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
			}
		}
	}
	prompt := sb.String()

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	for _, r := range m.Rules {
		if strings.Contains(prompt, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			return reply(r.Reply), nil
		}
	}
	if m.Default == "" {
		return nil, ErrNoRule
	}
	return reply(m.Default), nil
}

// Call implements llms.Model.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns the number of generation requests.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

// WordEmbedder embeds text as counts over a fixed vocabulary plus a small
// constant bias so no vector is all zeros.
type WordEmbedder struct {
	Vocab []string
	Err   error
}

func (w WordEmbedder) vec(text string) []float32 {
	v := make([]float32, len(w.Vocab)+1)
	v[len(w.Vocab)] = 0.01
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:?!()\"'")
		for i, known := range w.Vocab {
			if tok == known {
				v[i]++
			}
		}
	}
	return v
}

// EmbedDocuments implements embeddings.Embedder.
func (w WordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = w.vec(t)
	}
	return out, nil
}

// EmbedQuery implements embeddings.Embedder.
func (w WordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.vec(text), nil
}
