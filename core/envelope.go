package core

import (
	"errors"

	"github.com/google/uuid"
)

// Status is the top-level outcome of a dispatch.
type Status string

const (
	// StatusOK marks a successful dispatch.
	StatusOK Status = "ok"
	// StatusError marks a failed dispatch; ErrorDetail carries the kind.
	StatusError Status = "error"
)

// ServedBy identifies which concrete provider/model actually answered a
// routed model call. Only present on envelopes where a model call occurred.
type ServedBy struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ErrorDetail is the caller-facing error shape. Message is human readable;
// Kind is the taxonomy discriminator. Internal stack traces and provider
// error bodies never appear here.
type ErrorDetail struct {
	Kind           Kind     `json:"kind"`
	Message        string   `json:"message"`
	CompletedSteps []string `json:"completed_steps,omitempty"`
	Partial        any      `json:"partial,omitempty"`
}

// Envelope is the normalized response returned for every dispatch, success
// or failure. Callers never see raw internal errors or handler return values
// outside this shape.
type Envelope struct {
	Status        Status       `json:"status"`
	Payload       any          `json:"payload,omitempty"`
	Error         *ErrorDetail `json:"error_detail,omitempty"`
	CorrelationID string       `json:"correlation_id"`
	ServedBy      *ServedBy    `json:"served_by,omitempty"`
	// Partial marks results degraded by a stage failure or cancellation.
	Partial bool `json:"partial,omitempty"`
}

// OKEnvelope builds a success envelope.
func OKEnvelope(correlationID string, payload any) Envelope {
	return Envelope{
		Status:        StatusOK,
		Payload:       payload,
		CorrelationID: correlationID,
	}
}

// ErrorEnvelope builds an error envelope from a classified (or arbitrary)
// error. The error's taxonomy kind and message are extracted; handler step
// reports and partial payloads are preserved when present.
func ErrorEnvelope(correlationID string, err error) Envelope {
	detail := &ErrorDetail{
		Kind:    ClassifyError(err),
		Message: err.Error(),
	}
	var hErr *HandlerExecutionError
	var sErr *AgentStepLimitError
	var cErr *CancelledError
	switch {
	case errors.As(err, &hErr):
		detail.CompletedSteps = hErr.CompletedSteps
	case errors.As(err, &sErr):
		detail.Partial = sErr.Partial
	case errors.As(err, &cErr):
		detail.Partial = cErr.Partial
	}
	return Envelope{
		Status:        StatusError,
		Error:         detail,
		CorrelationID: correlationID,
	}
}

// NewID returns a fresh correlation identifier.
func NewID() string { return uuid.NewString() }
