// Package model defines the uniform provider interface the router depends
// on: prompt/messages in, text plus metadata out, typed error on failure.
// Concrete adapters (model/openai, model/anthropic) translate this shape to
// vendor SDKs; StubModel serves tests and examples.
package model

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Message is one conversational turn. Role is "system", "user" or
// "assistant".
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request is the normalized model input. Instructions become the system
// prompt; Messages carry the task and any accumulated loop transcript.
type Request struct {
	Instructions string    `json:"instructions,omitempty"`
	Messages     []Message `json:"messages"`
}

// TokenUsage captures token accounting for a response when the provider
// reports it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed (non-streaming) model answer.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "stub", etc.
}

// Model is the minimal interface the router drives. Generate must honor
// context cancellation; the router wraps every call in a bounded timeout.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// StubModel is a deterministic in-memory Model for tests and examples. It
// can return canned completions per prompt, replay a scripted sequence of
// responses, fail its first N calls, or fail permanently.
type StubModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	script    []string
	scriptPos int
	failFirst int
	err       error
	delay     time.Duration
	calls     int
}

// NewStubModel constructs a StubModel identified by name/provider.
func NewStubModel(name, provider string) *StubModel {
	return &StubModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion returned when the last user
// message equals prompt.
func (m *StubModel) AddResponse(prompt, response string) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
	return m
}

// Script sets an ordered sequence of responses returned one per call,
// taking precedence over canned completions. After the script is exhausted
// the last entry repeats.
func (m *StubModel) Script(responses ...string) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = responses
	m.scriptPos = 0
	return m
}

// FailFirst makes the next n calls fail before the model starts succeeding.
func (m *StubModel) FailFirst(n int) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = n
	return m
}

// AlwaysFail makes every call return err.
func (m *StubModel) AlwaysFail(err error) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Delay makes each call sleep for d (subject to context cancellation)
// before answering, for timeout tests.
func (m *StubModel) Delay(d time.Duration) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns how many times Generate was invoked, including failures.
func (m *StubModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model.
func (m *StubModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls++
	delay := m.delay
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	if m.failFirst > 0 {
		m.failFirst--
		m.mu.Unlock()
		return nil, fmt.Errorf("stub model %s: induced failure", m.info.Name)
	}
	var text string
	if len(m.script) > 0 {
		text = m.script[m.scriptPos]
		if m.scriptPos < len(m.script)-1 {
			m.scriptPos++
		}
	} else {
		prompt := lastUserText(req)
		text = m.responses[prompt]
		if text == "" {
			text = fmt.Sprintf("stub response to: %s", prompt)
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return &Response{Text: text, FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *StubModel) Info() Info { return m.info }

func lastUserText(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Text
		}
	}
	return ""
}
