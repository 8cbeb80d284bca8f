package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode 定义错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 通用错误
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// 配置错误
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// 试验错误
	ErrCodeTrialDivergence ErrorCode = "TRIAL_DIVERGENCE"
	ErrCodeTrialTimeout    ErrorCode = "TRIAL_TIMEOUT"

	// 搜索错误
	ErrCodeSearchAborted  ErrorCode = "SEARCH_ABORTED"
	ErrCodeSpaceExhausted ErrorCode = "SEARCH_SPACE_EXHAUSTED"

	// 评估与数据错误
	ErrCodeEvaluationShape ErrorCode = "EVALUATION_SHAPE_ERROR"
	ErrCodeDataInvalid     ErrorCode = "DATA_INVALID"

	// 存储错误
	ErrCodeStore ErrorCode = "STORE_ERROR"
)

// ErrorSeverity 定义错误严重程度
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError 创建新的应用错误
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  getSeverityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// NewAppErrorWithDetails 创建带详细信息的应用错误
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := NewAppError(code, message, cause)
	err.Details = details
	return err
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// getSeverityByCode 根据错误代码确定严重程度
func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeSearchAborted:
		return SeverityCritical
	case ErrCodeConfiguration, ErrCodeEvaluationShape, ErrCodeDataInvalid, ErrCodeStore:
		return SeverityHigh
	case ErrCodeTrialDivergence, ErrCodeTrialTimeout, ErrCodeSpaceExhausted:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable 判断错误是否可重试
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTrialDivergence, ErrCodeTrialTimeout:
		return true
	default:
		return false
	}
}

// Configuration builds a CONFIGURATION_ERROR for malformed or contradictory settings.
func Configuration(format string, args ...interface{}) *AppError {
	return NewAppError(ErrCodeConfiguration, fmt.Sprintf(format, args...), nil)
}

// EvaluationShape builds an EVALUATION_SHAPE_ERROR.
func EvaluationShape(format string, args ...interface{}) *AppError {
	return NewAppError(ErrCodeEvaluationShape, fmt.Sprintf(format, args...), nil)
}

// WrapError 包装标准错误为应用错误
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，直接返回
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	return NewAppError(code, message, err)
}

// IsAppError 检查是否为应用错误
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError 获取应用错误，沿 Unwrap 链查找
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}
