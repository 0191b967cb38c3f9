package errors

import (
	"net/http"
	"strings"

	"github.com/arenahub/playground-client/internal/model"
)

// Classify maps a non-2xx outcome onto the taxonomy. Side effects are keyed
// off the returned code, never off the raw status.
func Classify(scope model.RequestScope, status int, message string, payload any) *AppError {
	if message == "" {
		message = defaultMessage(status)
	}

	var code ErrorCode
	switch {
	case status == 0:
		code = ErrCodeNetwork
	case scope == model.ScopePortal && status == http.StatusUnauthorized:
		code = ErrCodePortalReauthRequired
	case scope == model.ScopePortal && status == http.StatusForbidden:
		code = ErrCodePortalForbidden
	case scope == model.ScopeApp && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		code = ErrCodeReauthRequired
	default:
		code = ErrCodeHTTP
	}

	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Scope:   scope,
		Details: payload,
	}
}

func defaultMessage(status int) string {
	if status == 0 {
		return "Network request failed"
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Request failed"
}

// ExtractMessage pulls a human readable message out of the error shapes the
// backend is known to return.
func ExtractMessage(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, field := range []string{"message", "error", "detail", "title", "msg"} {
			if msg := messageFrom(v[field]); msg != "" {
				return msg
			}
		}
		if errs, ok := v["errors"].([]any); ok && len(errs) > 0 {
			return messageFrom(errs[0])
		}
	}
	return ""
}

func messageFrom(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return ExtractMessage(v)
	}
	return ""
}
