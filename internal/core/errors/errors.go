package errors

import (
	"fmt"
)

// ErrorType groups domain errors by the layer that produced them.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeLimit      ErrorType = "limit"
	ErrorTypeTelegram   ErrorType = "telegram"
	ErrorTypeFileSystem ErrorType = "filesystem"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError carries a machine-readable type and code plus the message key shown to the user.
type DomainError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
	UserMsg string         `json:"user_message,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on Type and Code so wrapped copies compare equal to the sentinels below.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// GetUserMessage returns the localisation key for the chat reply.
func (e *DomainError) GetUserMessage() string {
	if e.UserMsg != "" {
		return e.UserMsg
	}
	return "error.general.unexpected"
}

// StopsFallback reports whether a failed download must not be handed to the next downloader.
func (e *DomainError) StopsFallback() bool {
	switch e.Code {
	case codeTimeout, codeFileTooLarge, codeCanceled:
		return true
	default:
		return false
	}
}

func NewDomainError(errType ErrorType, code, message string) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// WrapDomainError returns a copy of the sentinel with cause attached. The sentinel itself is not modified.
func WrapDomainError(err error, sentinel *DomainError) *DomainError {
	details := make(map[string]any, len(sentinel.Details))
	for k, v := range sentinel.Details {
		details[k] = v
	}
	return &DomainError{
		Type:    sentinel.Type,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Details: details,
		Cause:   err,
		UserMsg: sentinel.UserMsg,
	}
}

func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e *DomainError) WithUserMessage(msg string) *DomainError {
	e.UserMsg = msg
	return e
}

const (
	codeTimeout      = "timeout"
	codeFileTooLarge = "file_too_large"
	codeCanceled     = "canceled"
)

// Request errors
var (
	ErrNoLink = NewDomainError(ErrorTypeValidation, "no_link", "message contains no link").
			WithUserMessage("error.link.no_link")
	ErrUnsupportedURL = NewDomainError(ErrorTypeValidation, "unsupported_url", "link does not belong to a supported platform").
				WithUserMessage("error.link.unsupported")
	ErrRateLimited = NewDomainError(ErrorTypeLimit, "rate_limited", "user sent too many links").
			WithUserMessage("error.general.rate_limited")
)

// Extraction errors
var (
	ErrNetwork = NewDomainError(ErrorTypeNetwork, "network", "network error while downloading").
			WithUserMessage("error.download.network")
	ErrPrivateContent = NewDomainError(ErrorTypeExtraction, "private", "content is private or requires login").
				WithUserMessage("error.download.private")
	ErrGeoRestricted = NewDomainError(ErrorTypeExtraction, "geo_restricted", "content is not available in this region").
				WithUserMessage("error.download.geo_restricted")
	ErrContentUnavailable = NewDomainError(ErrorTypeExtraction, "unavailable", "content is removed or unsupported").
				WithUserMessage("error.download.unavailable")
	ErrTimeout = NewDomainError(ErrorTypeExtraction, codeTimeout, "download took too long").
			WithUserMessage("error.download.timeout")
	ErrCanceled = NewDomainError(ErrorTypeInternal, codeCanceled, "job was canceled").
			WithUserMessage("error.general.canceled")
)

// Processing errors
var (
	ErrConversionFailed = NewDomainError(ErrorTypeConversion, "conversion_failed", "could not convert media to a playable format").
				WithUserMessage("error.conversion.failed")
	ErrFileTooLarge = NewDomainError(ErrorTypeLimit, codeFileTooLarge, "file exceeds the upload limit").
			WithUserMessage("error.size.too_large")
	ErrInsufficientSpace = NewDomainError(ErrorTypeFileSystem, "insufficient_space", "not enough free disk space").
				WithUserMessage("error.general.no_space")
	ErrUploadFailed = NewDomainError(ErrorTypeTelegram, "upload_failed", "failed to send media to the chat").
			WithUserMessage("error.upload.failed")
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal", "unexpected error").
			WithUserMessage("error.general.unexpected")
)

// NewFileTooLargeError records the offending size against the limit.
func NewFileTooLargeError(size, limit int64) *DomainError {
	return WrapDomainError(nil, ErrFileTooLarge).WithDetails(map[string]any{
		"size":  size,
		"limit": limit,
	})
}
