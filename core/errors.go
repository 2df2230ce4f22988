package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an error class in the caller-facing taxonomy. Every error
// envelope carries exactly one Kind; internal errors that do not map to a
// specific kind are wrapped as KindHandlerExecution.
type Kind string

const (
	// KindUnknownAction indicates a dispatch for an unregistered action name.
	KindUnknownAction Kind = "UnknownActionError"
	// KindLowConfidence indicates intent classification below the configured threshold.
	KindLowConfidence Kind = "LowConfidenceError"
	// KindMissingParameter indicates one or more required parameters were absent.
	KindMissingParameter Kind = "MissingParameterError"
	// KindParameterType indicates a supplied argument did not match the declared type.
	KindParameterType Kind = "ParameterTypeError"
	// KindUnknownParameter indicates an argument key not declared by the schema.
	KindUnknownParameter Kind = "UnknownParameterError"
	// KindAllProvidersExhausted indicates every route entry failed or was open.
	KindAllProvidersExhausted Kind = "AllProvidersExhaustedError"
	// KindAgentStepLimit indicates a reasoning loop hit its step ceiling.
	KindAgentStepLimit Kind = "AgentStepLimitError"
	// KindDomainViolation indicates a memory write addressed the wrong domain.
	KindDomainViolation Kind = "DomainViolationError"
	// KindHandlerExecution wraps a handler's own internal failure.
	KindHandlerExecution Kind = "HandlerExecutionError"
	// KindCancelled indicates the dispatch deadline expired or was cancelled.
	KindCancelled Kind = "CancelledError"
)

// Classified is implemented by every taxonomy error so the engine can build
// error envelopes without type-switching over concrete structs.
type Classified interface {
	error
	Kind() Kind
}

// UnknownActionError reports a dispatch against an unregistered action name.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unsupported action %q", e.Name)
}

// Kind implements Classified.
func (e *UnknownActionError) Kind() Kind { return KindUnknownAction }

// LowConfidenceError reports an intent classification whose confidence fell
// below the configured threshold; the engine surfaces it instead of guessing.
type LowConfidenceError struct {
	Intent     string
	Action     string
	Confidence float64
	Threshold  float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("intent classification confidence %.2f below threshold %.2f", e.Confidence, e.Threshold)
}

// Kind implements Classified.
func (e *LowConfidenceError) Kind() Kind { return KindLowConfidence }

// MissingParameterError lists every required parameter absent from a dispatch
// request. All missing names are collected in one pass so callers can fix the
// request in a single round trip.
type MissingParameterError struct {
	Action  string
	Missing []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("action %s: missing required parameters: %s", e.Action, strings.Join(e.Missing, ", "))
}

// Kind implements Classified.
func (e *MissingParameterError) Kind() Kind { return KindMissingParameter }

// ParameterTypeError reports a single argument whose value could not be
// coerced to the schema's declared type. Coercion failures are reported,
// never silently defaulted.
type ParameterTypeError struct {
	Action    string
	Parameter string
	Expected  string
	Value     any
}

func (e *ParameterTypeError) Error() string {
	return fmt.Sprintf("action %s: parameter %q expects %s, got %T", e.Action, e.Parameter, e.Expected, e.Value)
}

// Kind implements Classified.
func (e *ParameterTypeError) Kind() Kind { return KindParameterType }

// UnknownParameterError reports argument keys the schema does not declare.
// Extra keys are rejected rather than ignored to catch caller drift early.
type UnknownParameterError struct {
	Action  string
	Unknown []string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("action %s: unknown parameters: %s", e.Action, strings.Join(e.Unknown, ", "))
}

// Kind implements Classified.
func (e *UnknownParameterError) Kind() Kind { return KindUnknownParameter }

// AllProvidersExhaustedError is terminal for a single router call: every
// entry in the role's route either failed or had an open breaker. Attempts
// records one line per entry for diagnostics.
type AllProvidersExhaustedError struct {
	Role     string
	Attempts []string
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("role %s: all providers exhausted (%d attempts)", e.Role, len(e.Attempts))
}

// Kind implements Classified.
func (e *AllProvidersExhaustedError) Kind() Kind { return KindAllProvidersExhausted }

// AgentStepLimitError reports a reasoning loop that reached its step ceiling
// before emitting a final answer. Partial carries whatever the loop produced
// so far; it is never silently truncated.
type AgentStepLimitError struct {
	Agent   string
	Steps   int
	Partial string
}

func (e *AgentStepLimitError) Error() string {
	return fmt.Sprintf("agent %s: step limit %d exhausted without final answer", e.Agent, e.Steps)
}

// Kind implements Classified.
func (e *AgentStepLimitError) Kind() Kind { return KindAgentStepLimit }

// DomainViolationError reports a memory write whose content classifies into a
// different domain than the one addressed. It is always fatal and always
// logged; rerouting would hide the caller bug.
type DomainViolationError struct {
	Domain     string
	Classified string
	Key        string
}

func (e *DomainViolationError) Error() string {
	return fmt.Sprintf("memory write %q addressed domain %s but content classifies as %s", e.Key, e.Domain, e.Classified)
}

// Kind implements Classified.
func (e *DomainViolationError) Kind() Kind { return KindDomainViolation }

// HandlerExecutionError wraps a handler's internal failure. CompletedSteps
// enumerates the external side effects that succeeded before the failure so
// multi-step handlers never report a bare "failed".
type HandlerExecutionError struct {
	Action         string
	CompletedSteps []string
	Err            error
}

func (e *HandlerExecutionError) Error() string {
	if len(e.CompletedSteps) > 0 {
		return fmt.Sprintf("action %s: handler failed after steps [%s]: %v", e.Action, strings.Join(e.CompletedSteps, ", "), e.Err)
	}
	return fmt.Sprintf("action %s: handler failed: %v", e.Action, e.Err)
}

// Kind implements Classified.
func (e *HandlerExecutionError) Kind() Kind { return KindHandlerExecution }

// Unwrap exposes the handler's own error for errors.Is/As chains.
func (e *HandlerExecutionError) Unwrap() error { return e.Err }

// CancelledError reports a dispatch that hit its deadline or was cancelled.
// Partial carries results from pipeline stages that completed before the
// cancellation; they are returned, not discarded.
type CancelledError struct {
	CorrelationID string
	Partial       any
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("dispatch %s cancelled", e.CorrelationID)
}

// Kind implements Classified.
func (e *CancelledError) Kind() Kind { return KindCancelled }

// ClassifyError maps any error to its taxonomy kind. Errors outside the
// taxonomy (including raw context cancellation) are normalized so callers
// never see internal error shapes.
func ClassifyError(err error) Kind {
	var c Classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindHandlerExecution
}
