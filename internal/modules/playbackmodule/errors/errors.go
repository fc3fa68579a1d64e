// Package errors provides structured error handling for the playback module.
// It defines error types, sentinel errors, and utility functions used by the
// decision core and the components around it.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for classification
type ErrorType string

const (
	// ErrorTypeRule indicates a malformed or self-contradictory profile rule
	ErrorTypeRule ErrorType = "rule"
	// ErrorTypeCodec indicates a codec no rule or encoder can handle
	ErrorTypeCodec ErrorType = "codec"
	// ErrorTypeContainer indicates a container no rule can handle
	ErrorTypeContainer ErrorType = "container"
	// ErrorTypePolicy indicates a rule that cannot be reconciled with the encoding policy
	ErrorTypePolicy ErrorType = "policy"
	// ErrorTypeValidation indicates input validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeSource indicates a failing profile, policy or media source
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeInternal indicates internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinel errors for common scenarios
var (
	// ErrInvalidRule indicates a profile rule that is malformed
	ErrInvalidRule = errors.New("invalid rule")

	// ErrUnsupportedCodec indicates a codec outside the recognized codec sets
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrUnsupportedContainer indicates a container that cannot be served
	ErrUnsupportedContainer = errors.New("unsupported container")

	// ErrPolicyConflict indicates a rule demanding something the policy forbids
	ErrPolicyConflict = errors.New("policy conflict")

	// ErrProfileNotFound indicates no profile is registered under a name
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidInput indicates invalid request parameters
	ErrInvalidInput = errors.New("invalid input")
)

// NoRule marks an error that is not tied to a particular rule.
const NoRule = -1

// PlaybackError provides structured error information with context
type PlaybackError struct {
	Type      ErrorType              // Error classification
	Op        string                 // Operation that failed (e.g., "plan", "validate_profile")
	Profile   string                 // Profile consulted, if any
	RuleIndex int                    // Index of the offending rule, NoRule if none
	Err       error                  // Underlying error
	Details   map[string]interface{} // Additional context
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	var context []string

	if e.Profile != "" {
		context = append(context, fmt.Sprintf("profile=%s", e.Profile))
	}
	if e.RuleIndex != NoRule {
		context = append(context, fmt.Sprintf("rule=%d", e.RuleIndex))
	}

	if len(context) > 0 {
		return fmt.Sprintf("%s error in %s [%s]: %v", e.Type, e.Op, strings.Join(context, " "), e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Type, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for sentinel errors
func (e *PlaybackError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// New creates a new PlaybackError
func New(errType ErrorType, op string, err error) *PlaybackError {
	return &PlaybackError{
		Type:      errType,
		Op:        op,
		RuleIndex: NoRule,
		Err:       err,
		Details:   make(map[string]interface{}),
	}
}

// WithProfile adds profile context to the error
func (e *PlaybackError) WithProfile(name string) *PlaybackError {
	e.Profile = name
	return e
}

// WithRule adds rule context to the error
func (e *PlaybackError) WithRule(index int) *PlaybackError {
	e.RuleIndex = index
	return e
}

// WithDetail adds a key-value detail to the error
func (e *PlaybackError) WithDetail(key string, value interface{}) *PlaybackError {
	e.Details[key] = value
	return e
}

// WithDetails adds multiple key-value details to the error
func (e *PlaybackError) WithDetails(details map[string]interface{}) *PlaybackError {
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsConfigurationError reports whether the error points at profile or policy
// configuration rather than at the media. Callers surface these to operators
// and may fall back to another profile.
func (e *PlaybackError) IsConfigurationError() bool {
	return e.Type == ErrorTypeRule || e.Type == ErrorTypePolicy
}

// Error creation helpers

// RuleError creates an invalid rule error
func RuleError(op, format string, args ...interface{}) *PlaybackError {
	return New(ErrorTypeRule, op, fmt.Errorf("%w: %s", ErrInvalidRule, fmt.Sprintf(format, args...)))
}

// CodecError creates an unsupported codec error
func CodecError(op, codec string) *PlaybackError {
	return New(ErrorTypeCodec, op, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)).
		WithDetail("codec", codec)
}

// ContainerError creates an unsupported container error
func ContainerError(op, container string) *PlaybackError {
	return New(ErrorTypeContainer, op, fmt.Errorf("%w: %q", ErrUnsupportedContainer, container)).
		WithDetail("container", container)
}

// PolicyError creates a policy conflict error
func PolicyError(op, format string, args ...interface{}) *PlaybackError {
	return New(ErrorTypePolicy, op, fmt.Errorf("%w: %s", ErrPolicyConflict, fmt.Sprintf(format, args...)))
}

// ValidationError creates a validation error
func ValidationError(op string, err error) *PlaybackError {
	return New(ErrorTypeValidation, op, err)
}

// SourceError creates a profile, policy or media source error
func SourceError(op string, err error) *PlaybackError {
	return New(ErrorTypeSource, op, err)
}

// InternalError creates an internal system error
func InternalError(op string, err error) *PlaybackError {
	return New(ErrorTypeInternal, op, err)
}

// Wrap wraps an error with operation context if it's not already a PlaybackError
func Wrap(err error, errType ErrorType, op string) error {
	if err == nil {
		return nil
	}

	// If it's already a PlaybackError, preserve it
	var pErr *PlaybackError
	if errors.As(err, &pErr) {
		return err
	}

	return New(errType, op, err)
}

// GetType extracts the error type from an error
func GetType(err error) ErrorType {
	var pErr *PlaybackError
	if errors.As(err, &pErr) {
		return pErr.Type
	}
	return ErrorTypeInternal
}

// GetOperation extracts the operation from an error
func GetOperation(err error) string {
	var pErr *PlaybackError
	if errors.As(err, &pErr) {
		return pErr.Op
	}
	return "unknown"
}

// GetDetails extracts error details
func GetDetails(err error) map[string]interface{} {
	var pErr *PlaybackError
	if errors.As(err, &pErr) {
		return pErr.Details
	}
	return nil
}

// IsConfigurationError reports whether err is an InvalidRule or PolicyConflict.
func IsConfigurationError(err error) bool {
	var pErr *PlaybackError
	if errors.As(err, &pErr) {
		return pErr.IsConfigurationError()
	}
	return errors.Is(err, ErrInvalidRule) || errors.Is(err, ErrPolicyConflict)
}
