package errors

import (
	"fmt"
	"testing"
)

func BenchmarkNewAppError(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NewAppError(ErrCodeInvalidInput, "test error", nil)
	}
}

func BenchmarkIsCode(b *testing.B) {
	err := fmt.Errorf("search: %w", NewAppError(ErrCodeSearchAborted, "aborted",
		NewAppError(ErrCodeTrialDivergence, "diverged", nil)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = IsCode(err, ErrCodeTrialDivergence)
	}
}
