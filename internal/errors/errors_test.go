package errors

import (
	"fmt"
	"testing"
)

func TestNewAppError(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "Test error", nil)

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	if err.Message != "Test error" {
		t.Errorf("Expected message 'Test error', got %s", err.Message)
	}

	if err.Severity != SeverityLow {
		t.Errorf("Expected severity %s, got %s", SeverityLow, err.Severity)
	}
}

func TestAppErrorMessage(t *testing.T) {
	cause := fmt.Errorf("loss is NaN")
	err := NewAppErrorWithDetails(ErrCodeTrialDivergence, "trial diverged", "trial 3", cause)

	want := "[TRIAL_DIVERGENCE] trial diverged: trial 3: loss is NaN"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewAppError(ErrCodeSearchAborted, "aborted", nil)
	err = err.WithContext("consecutive_failures", 3)

	if err.Context["consecutive_failures"] != 3 {
		t.Errorf("Expected context consecutive_failures 3, got %v", err.Context["consecutive_failures"])
	}
}

func TestAppErrorIsRetryable(t *testing.T) {
	retryableErr := NewAppError(ErrCodeTrialDivergence, "diverged", nil)
	nonRetryableErr := NewAppError(ErrCodeConfiguration, "bad bounds", nil)

	if !retryableErr.IsRetryable() {
		t.Error("Divergence error should be retryable")
	}

	if nonRetryableErr.IsRetryable() {
		t.Error("Configuration error should not be retryable")
	}
}

func TestWrapError(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	wrappedErr := WrapError(originalErr, ErrCodeStore, "store error")

	if wrappedErr.Code != ErrCodeStore {
		t.Errorf("Expected code %s, got %s", ErrCodeStore, wrappedErr.Code)
	}

	if wrappedErr.Cause != originalErr {
		t.Error("Wrapped error should preserve original error")
	}

	if WrapError(nil, ErrCodeStore, "x") != nil {
		t.Error("Wrapping nil should return nil")
	}
}

func TestWrapErrorKeepsAppError(t *testing.T) {
	appErr := Configuration("units_1: max %d < min %d", 0, 1)
	wrapped := fmt.Errorf("load: %w", appErr)

	if got := WrapError(wrapped, ErrCodeInternal, "internal"); got != appErr {
		t.Error("WrapError should return the AppError found in the chain")
	}
}

func TestGetSeverityByCode(t *testing.T) {
	tests := []struct {
		code             ErrorCode
		expectedSeverity ErrorSeverity
	}{
		{ErrCodeInternal, SeverityCritical},
		{ErrCodeSearchAborted, SeverityCritical},
		{ErrCodeConfiguration, SeverityHigh},
		{ErrCodeEvaluationShape, SeverityHigh},
		{ErrCodeTrialDivergence, SeverityMedium},
		{ErrCodeInvalidInput, SeverityLow},
	}

	for _, test := range tests {
		severity := getSeverityByCode(test.code)
		if severity != test.expectedSeverity {
			t.Errorf("Code %s: expected severity %s, got %s", test.code, test.expectedSeverity, severity)
		}
	}
}

func TestIsCode(t *testing.T) {
	divergence := NewAppError(ErrCodeTrialDivergence, "diverged", nil)
	aborted := NewAppError(ErrCodeSearchAborted, "aborted", divergence)
	wrapped := fmt.Errorf("search: %w", aborted)

	if !IsCode(wrapped, ErrCodeSearchAborted) {
		t.Error("Should find SEARCH_ABORTED in chain")
	}
	if !IsCode(wrapped, ErrCodeTrialDivergence) {
		t.Error("Should find TRIAL_DIVERGENCE as cause")
	}
	if IsCode(wrapped, ErrCodeConfiguration) {
		t.Error("Should not find CONFIGURATION_ERROR")
	}
	if IsCode(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("Plain errors carry no code")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInternal, "Test", nil)
	standardErr := fmt.Errorf("standard error")

	if !IsAppError(appErr) {
		t.Error("Should recognize AppError")
	}

	if IsAppError(standardErr) {
		t.Error("Should not recognize standard error as AppError")
	}
}
