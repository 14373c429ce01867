package bifaci

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode is the numeric error code carried in host-reported errors.
type ErrorCode int

const (
	ErrorCodeNotSupportedOnPlatform       ErrorCode = 100
	ErrorCodeFileNotFound                 ErrorCode = 404
	ErrorCodeInternalError                ErrorCode = 500
	ErrorCodeNotSupportedInCurrentContext ErrorCode = 501
	ErrorCodePermissionDenied             ErrorCode = 1000
	ErrorCodeNetworkError                 ErrorCode = 2000
	ErrorCodeNoHWSupport                  ErrorCode = 3000
	ErrorCodeInvalidArguments             ErrorCode = 4000
	ErrorCodeUnauthorizedUserOperation    ErrorCode = 5000
	ErrorCodeInsufficientResources        ErrorCode = 6000
	ErrorCodeThrottle                     ErrorCode = 7000
	ErrorCodeUserAbort                    ErrorCode = 8000
	ErrorCodeOperationTimedOut            ErrorCode = 8001
	ErrorCodeOldPlatform                  ErrorCode = 9000
	ErrorCodeSizeExceeded                 ErrorCode = 10000
)

// String returns the error code name
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeNotSupportedOnPlatform:
		return "NOT_SUPPORTED_ON_PLATFORM"
	case ErrorCodeFileNotFound:
		return "FILE_NOT_FOUND"
	case ErrorCodeInternalError:
		return "INTERNAL_ERROR"
	case ErrorCodeNotSupportedInCurrentContext:
		return "NOT_SUPPORTED_IN_CURRENT_CONTEXT"
	case ErrorCodePermissionDenied:
		return "PERMISSION_DENIED"
	case ErrorCodeNetworkError:
		return "NETWORK_ERROR"
	case ErrorCodeNoHWSupport:
		return "NO_HW_SUPPORT"
	case ErrorCodeInvalidArguments:
		return "INVALID_ARGUMENTS"
	case ErrorCodeUnauthorizedUserOperation:
		return "UNAUTHORIZED_USER_OPERATION"
	case ErrorCodeInsufficientResources:
		return "INSUFFICIENT_RESOURCES"
	case ErrorCodeThrottle:
		return "THROTTLE"
	case ErrorCodeUserAbort:
		return "USER_ABORT"
	case ErrorCodeOperationTimedOut:
		return "OPERATION_TIMED_OUT"
	case ErrorCodeOldPlatform:
		return "OLD_PLATFORM"
	case ErrorCodeSizeExceeded:
		return "SIZE_EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// SdkError is the error shape surfaced to callers, whether detected locally or
// reported by the host.
type SdkError struct {
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message,omitempty"`
}

func (e *SdkError) Error() string {
	if e.Message == "" {
		return e.ErrorCode.String()
	}
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// Is matches another *SdkError by code only, so callers can write
// errors.Is(err, &SdkError{ErrorCode: ErrorCodeOldPlatform}).
func (e *SdkError) Is(target error) bool {
	var other *SdkError
	if !errors.As(target, &other) {
		return false
	}
	return other.ErrorCode == e.ErrorCode
}

// NewSdkError creates an SdkError with the given code and message
func NewSdkError(code ErrorCode, message string) *SdkError {
	return &SdkError{ErrorCode: code, Message: message}
}

// SdkErrorFromArg decodes a host-reported error argument. It returns nil when
// the argument is absent, null, or does not carry an error code.
func SdkErrorFromArg(arg json.RawMessage) *SdkError {
	if len(arg) == 0 || string(arg) == "null" {
		return nil
	}
	var probe struct {
		ErrorCode *ErrorCode `json:"errorCode"`
		Message   string     `json:"message"`
	}
	if err := json.Unmarshal(arg, &probe); err != nil || probe.ErrorCode == nil {
		return nil
	}
	return &SdkError{ErrorCode: *probe.ErrorCode, Message: probe.Message}
}

// TransportError represents errors raised while moving envelopes
type TransportError struct {
	Type    TransportErrorType
	Message string
	Err     error
}

type TransportErrorType int

const (
	TransportErrorTypeEncode TransportErrorType = iota
	TransportErrorTypeSend
	TransportErrorTypeClosed
	TransportErrorTypeOriginNotValidated
	TransportErrorTypeNoHost
	TransportErrorTypeFrameTooLarge
)

func (e *TransportError) Error() string {
	switch e.Type {
	case TransportErrorTypeEncode:
		return fmt.Sprintf("encode error: %s", e.Message)
	case TransportErrorTypeSend:
		return fmt.Sprintf("send error: %s", e.Message)
	case TransportErrorTypeClosed:
		return "transport is closed"
	case TransportErrorTypeOriginNotValidated:
		return fmt.Sprintf("host origin not validated, refusing to post %s", e.Message)
	case TransportErrorTypeNoHost:
		return fmt.Sprintf("no host to talk to: %s", e.Message)
	case TransportErrorTypeFrameTooLarge:
		return fmt.Sprintf("frame too large: %s", e.Message)
	default:
		return fmt.Sprintf("unknown transport error: %s", e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches on Type so the sentinels below work with errors.Is.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	return ok && t.Message == "" && t.Err == nil && t.Type == e.Type
}

var (
	ErrTransportClosed    = &TransportError{Type: TransportErrorTypeClosed}
	ErrOriginNotValidated = &TransportError{Type: TransportErrorTypeOriginNotValidated}
	ErrNoHost             = &TransportError{Type: TransportErrorTypeNoHost}
	ErrFrameTooLarge      = &TransportError{Type: TransportErrorTypeFrameTooLarge}
)
