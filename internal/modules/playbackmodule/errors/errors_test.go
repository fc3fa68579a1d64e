package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPlaybackError(t *testing.T) {
	err := New(ErrorTypeRule, "plan", errors.New("container missing"))
	if err.Type != ErrorTypeRule {
		t.Errorf("expected type %s, got %s", ErrorTypeRule, err.Type)
	}
	if err.RuleIndex != NoRule {
		t.Errorf("expected no rule index, got %d", err.RuleIndex)
	}

	if got := err.Error(); got != "rule error in plan: container missing" {
		t.Errorf("unexpected error string %q", got)
	}

	err = err.WithProfile("Generic Device").WithRule(1).WithDetail("container", "ts")
	if err.Details["container"] != "ts" {
		t.Errorf("expected container detail 'ts', got %v", err.Details["container"])
	}

	expected := "rule error in plan [profile=Generic Device rule=1]: container missing"
	if got := err.Error(); got != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, got)
	}
}

func TestErrorWrapping(t *testing.T) {
	err := RuleError("validate_rule", "audio rule declares video codec %q", "h264")
	if !errors.Is(err, ErrInvalidRule) {
		t.Error("expected error to match ErrInvalidRule")
	}
	if GetType(err) != ErrorTypeRule {
		t.Errorf("expected type %s, got %s", ErrorTypeRule, GetType(err))
	}
	if GetOperation(err) != "validate_rule" {
		t.Errorf("expected operation 'validate_rule', got %s", GetOperation(err))
	}

	wrapped := fmt.Errorf("decide: %w", PolicyError("plan", "hevc encoding disabled"))
	if !errors.Is(wrapped, ErrPolicyConflict) {
		t.Error("expected wrapped error to match ErrPolicyConflict")
	}
	if GetType(wrapped) != ErrorTypePolicy {
		t.Errorf("expected type %s through wrapping, got %s", ErrorTypePolicy, GetType(wrapped))
	}

	codecErr := CodecError("plan", "prores")
	if GetDetails(codecErr)["codec"] != "prores" {
		t.Errorf("expected codec detail, got %v", GetDetails(codecErr))
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrorTypeInternal, "noop") != nil {
		t.Error("expected nil for nil error")
	}

	original := ContainerError("match", "rm")
	if Wrap(original, ErrorTypeInternal, "other") != error(original) {
		t.Error("expected existing PlaybackError to be preserved")
	}

	plain := errors.New("disk gone")
	wrapped := Wrap(plain, ErrorTypeSource, "load_profiles")
	if GetType(wrapped) != ErrorTypeSource {
		t.Errorf("expected type %s, got %s", ErrorTypeSource, GetType(wrapped))
	}
	if !errors.Is(wrapped, plain) {
		t.Error("expected wrapped error to match the original")
	}

	if GetType(plain) != ErrorTypeInternal || GetOperation(plain) != "unknown" {
		t.Error("expected defaults for foreign errors")
	}
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		config bool
	}{
		{name: "invalid rule", err: RuleError("plan", "empty container"), config: true},
		{name: "policy conflict", err: PolicyError("plan", "hardware disabled"), config: true},
		{name: "bare sentinel", err: fmt.Errorf("x: %w", ErrInvalidRule), config: true},
		{name: "unsupported codec", err: CodecError("plan", "prores"), config: false},
		{name: "validation", err: ValidationError("decide", ErrInvalidInput), config: false},
		{name: "foreign", err: errors.New("boom"), config: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.config {
				t.Errorf("IsConfigurationError() = %v, want %v", got, tt.config)
			}
		})
	}
}
