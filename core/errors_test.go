package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&UnknownActionError{Name: "x"}, KindUnknownAction},
		{&LowConfidenceError{Intent: "do it", Confidence: 0.3, Threshold: 0.6}, KindLowConfidence},
		{&MissingParameterError{Action: "a", Missing: []string{"p"}}, KindMissingParameter},
		{&ParameterTypeError{Action: "a", Parameter: "p", Expected: "string"}, KindParameterType},
		{&UnknownParameterError{Action: "a", Unknown: []string{"q"}}, KindUnknownParameter},
		{&AllProvidersExhaustedError{Role: "analyst"}, KindAllProvidersExhausted},
		{&AgentStepLimitError{Agent: "w", Steps: 16}, KindAgentStepLimit},
		{&DomainViolationError{Domain: "business", Classified: "technical"}, KindDomainViolation},
		{&HandlerExecutionError{Action: "a", Err: errors.New("boom")}, KindHandlerExecution},
		{&CancelledError{CorrelationID: "c"}, KindCancelled},
		{context.Canceled, KindCancelled},
		{context.DeadlineExceeded, KindCancelled},
		{errors.New("anonymous"), KindHandlerExecution},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyError(tc.err), "error: %v", tc.err)
	}
}

func TestClassifyWrappedError(t *testing.T) {
	err := fmt.Errorf("dispatch failed: %w", &UnknownActionError{Name: "x"})
	assert.Equal(t, KindUnknownAction, ClassifyError(err))
}

func TestHandlerExecutionErrorUnwrap(t *testing.T) {
	inner := errors.New("db down")
	err := &HandlerExecutionError{Action: "a", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestErrorEnvelopePreservesDetail(t *testing.T) {
	env := ErrorEnvelope("corr-1", &HandlerExecutionError{
		Action:         "report.build",
		CompletedSteps: []string{"collect", "render"},
		Err:            errors.New("upload failed"),
	})
	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, KindHandlerExecution, env.Error.Kind)
	assert.Equal(t, []string{"collect", "render"}, env.Error.CompletedSteps)

	env = ErrorEnvelope("corr-2", &AgentStepLimitError{Agent: "w", Steps: 16, Partial: "half an answer"})
	assert.Equal(t, "half an answer", env.Error.Partial)

	env = ErrorEnvelope("corr-3", &CancelledError{CorrelationID: "corr-3", Partial: "stage output"})
	assert.Equal(t, "stage output", env.Error.Partial)
}

func TestOKEnvelope(t *testing.T) {
	env := OKEnvelope("corr-1", map[string]any{"answer": 42})
	assert.Equal(t, StatusOK, env.Status)
	assert.Nil(t, env.Error)
	assert.NotNil(t, env.Payload)
}
