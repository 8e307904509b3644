package errors

import (
	"context"
	stderrors "errors"
	"strings"
)

type stderrRule struct {
	needles  []string
	sentinel *DomainError
}

// Checked in order; the first rule with a matching needle wins.
var stderrRules = []stderrRule{
	{[]string{"private video", "is private", "login required", "sign in to confirm your age",
		"age-restricted", "members-only", "members only", "requires authentication", "cookies"}, ErrPrivateContent},
	{[]string{"geo restricted", "geo-restricted", "not available in your country", "blocked it in your country",
		"not made this video available in your country"}, ErrGeoRestricted},
	{[]string{"video unavailable", "has been removed", "copyright", "http error 404", "404 not found",
		"unsupported url", "no video formats", "requested format is not available", "does not exist",
		"is not a valid url", "this video is no longer available"}, ErrContentUnavailable},
	{[]string{"timed out", "etimedout", "read timeout"}, ErrTimeout},
	{[]string{"unable to download webpage", "connection reset", "econnreset", "name or service not known",
		"temporary failure in name resolution", "network is unreachable", "connection refused",
		"http error 5", "http error 429", "too many requests", "sslerror", "eof occurred"}, ErrNetwork},
}

// ClassifyExtractorError maps a failed tool run onto a domain error using the tool's stderr.
// Context deadline and cancellation take precedence over stderr contents.
func ClassifyExtractorError(cause error, stderr string) *DomainError {
	switch {
	case stderrors.Is(cause, context.DeadlineExceeded):
		return WrapDomainError(cause, ErrTimeout)
	case stderrors.Is(cause, context.Canceled):
		return WrapDomainError(cause, ErrCanceled)
	}

	var de *DomainError
	if stderrors.As(cause, &de) {
		return de
	}

	msg := strings.ToLower(stderr)
	if msg == "" && cause != nil {
		msg = strings.ToLower(cause.Error())
	}
	for _, rule := range stderrRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return WrapDomainError(cause, rule.sentinel).WithDetails(map[string]any{"match": needle})
			}
		}
	}
	return WrapDomainError(cause, ErrContentUnavailable)
}

// AsDomainError converts any error into a DomainError, defaulting to ErrInternal.
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if stderrors.As(err, &de) {
		return de
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return WrapDomainError(err, ErrTimeout)
	case stderrors.Is(err, context.Canceled):
		return WrapDomainError(err, ErrCanceled)
	}
	return WrapDomainError(err, ErrInternal)
}

// AsNetworkError is AsDomainError for failures of direct HTTP fetches, where unknown errors are network errors.
func AsNetworkError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if stderrors.As(err, &de) {
		return de
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return WrapDomainError(err, ErrTimeout)
	case stderrors.Is(err, context.Canceled):
		return WrapDomainError(err, ErrCanceled)
	}
	return WrapDomainError(err, ErrNetwork)
}
