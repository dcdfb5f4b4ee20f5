package pipeline

import "fmt"

// Code identifies a pipeline failure class.
type Code string

const (
	CodeUnsupportedImage       Code = "UNSUPPORTED_IMAGE"
	CodeAnalysisFailed         Code = "ANALYSIS_FAILED"
	CodeConfiguration          Code = "CONFIGURATION"
	CodeEnhancementUnavailable Code = "ENHANCEMENT_UNAVAILABLE"
	CodeDeliveryFailed         Code = "DELIVERY_FAILED"
)

// Error is a structured pipeline failure. Image and analysis errors are
// fatal for their receipt; enhancement and delivery errors are absorbed
// by the caller.
type Error struct {
	Code      Code
	Stage     string // e.g. "normalize", "analyze"
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Stage, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Stage)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the batch layer may retry this failure.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}
