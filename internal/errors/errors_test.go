package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arenahub/playground-client/internal/model"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeHTTP, "Not Found")
		assert.Equal(t, "HTTP_ERROR: Not Found", err.Error())
	})

	t.Run("Error includes status when set", func(t *testing.T) {
		err := Classify(model.ScopeApp, http.StatusInternalServerError, "boom", nil)
		assert.Equal(t, "HTTP_ERROR: boom (status 500)", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := Network(cause)
		assert.Contains(t, err.Error(), "NETWORK_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]any{"field": "email"}
		err := New(ErrCodeHTTP, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestPreflightConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
		scope        model.RequestScope
	}{
		{"AuthRequired", AuthRequired, ErrCodeAuthRequired, model.ScopeApp},
		{"PortalAuthRequired", PortalAuthRequired, ErrCodePortalAuthRequired, model.ScopePortal},
		{"PortalAcademyRequired", PortalAcademyRequired, ErrCodePortalAcademyRequired, model.ScopePortal},
		{"PortalTryOutMissing", PortalTryOutMissing, ErrCodePortalTryOutMissing, model.ScopePortal},
		{"PortalSessionInvalid", func() *AppError { return PortalSessionInvalid("not_player") }, ErrCodePortalSessionInvalid, model.ScopePortal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.Equal(t, tc.scope, err.Scope)
			assert.Zero(t, err.Status)
			assert.NotEmpty(t, err.Message)
		})
	}

	t.Run("PortalSessionInvalid carries reason", func(t *testing.T) {
		assert.Equal(t, "missing_academy", PortalSessionInvalid("missing_academy").Reason)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		scope    model.RequestScope
		status   int
		expected ErrorCode
	}{
		{model.ScopeApp, 0, ErrCodeNetwork},
		{model.ScopeApp, http.StatusUnauthorized, ErrCodeReauthRequired},
		{model.ScopeApp, http.StatusForbidden, ErrCodeReauthRequired},
		{model.ScopeApp, http.StatusNotFound, ErrCodeHTTP},
		{model.ScopePortal, http.StatusUnauthorized, ErrCodePortalReauthRequired},
		{model.ScopePortal, http.StatusForbidden, ErrCodePortalForbidden},
		{model.ScopePortal, http.StatusInternalServerError, ErrCodeHTTP},
		{model.ScopeAuth, http.StatusUnauthorized, ErrCodeHTTP},
		{model.ScopeAuth, http.StatusForbidden, ErrCodeHTTP},
		{model.ScopePublic, http.StatusUnauthorized, ErrCodeHTTP},
		{model.ScopePublic, http.StatusBadRequest, ErrCodeHTTP},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s %d", tc.scope, tc.status), func(t *testing.T) {
			err := Classify(tc.scope, tc.status, "", nil)
			assert.Equal(t, tc.expected, err.Code)
			assert.Equal(t, tc.status, err.Status)
			assert.Equal(t, tc.scope, err.Scope)
			assert.NotEmpty(t, err.Message)
		})
	}

	t.Run("keeps payload and message", func(t *testing.T) {
		payload := map[string]any{"message": "slot taken"}
		err := Classify(model.ScopeApp, http.StatusConflict, "slot taken", payload)
		assert.Equal(t, "slot taken", err.Message)
		assert.Equal(t, payload, err.Details)
	})
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		expected string
	}{
		{"nil", nil, ""},
		{"text body", "  Bad gateway  ", "Bad gateway"},
		{"message field", map[string]any{"message": "Invalid credentials"}, "Invalid credentials"},
		{"error string", map[string]any{"error": "expired"}, "expired"},
		{"nested error object", map[string]any{"error": map[string]any{"message": "nested"}}, "nested"},
		{"detail field", map[string]any{"detail": "Not allowed"}, "Not allowed"},
		{"errors array", map[string]any{"errors": []any{map[string]any{"message": "first"}}}, "first"},
		{"message wins over error", map[string]any{"message": "m", "error": "e"}, "m"},
		{"unknown shape", map[string]any{"code": 12}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractMessage(tc.payload))
		})
	}
}

func TestPresent(t *testing.T) {
	t.Run("every code has a presentation", func(t *testing.T) {
		for _, code := range AllCodes {
			assert.NotEmpty(t, Present(New(code, "x")), code)
		}
	})

	t.Run("portal forbidden is access restricted", func(t *testing.T) {
		assert.Equal(t, PresentAccessRestricted, Present(New(ErrCodePortalForbidden, "x")))
	})

	t.Run("try-out missing offers portal refresh", func(t *testing.T) {
		assert.Equal(t, PresentPortalRefresh, Present(PortalTryOutMissing()))
	})

	t.Run("plain error is a toast", func(t *testing.T) {
		assert.Equal(t, PresentToast, Present(errors.New("plain")))
	})

	t.Run("wrapped AppError is unwrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("portal.Overview: %w", AuthRequired())
		assert.Equal(t, PresentLogin, Present(wrapped))
	})
}

func TestClearsPortalCredentials(t *testing.T) {
	assert.True(t, ClearsPortalCredentials(Classify(model.ScopePortal, http.StatusUnauthorized, "", nil)))
	assert.False(t, ClearsPortalCredentials(Classify(model.ScopePortal, http.StatusForbidden, "", nil)))
	assert.False(t, ClearsPortalCredentials(PortalSessionInvalid("missing_access_token")))
	assert.False(t, ClearsPortalCredentials(Classify(model.ScopeApp, http.StatusUnauthorized, "", nil)))
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		assert.Equal(t, ErrCodeAuthRequired, GetCode(AuthRequired()))
	})

	t.Run("returns ErrCodeHTTP for standard error", func(t *testing.T) {
		assert.Equal(t, ErrCodeHTTP, GetCode(errors.New("standard error")))
	})

	t.Run("Is matches wrapped", func(t *testing.T) {
		err := fmt.Errorf("wrap: %w", portalForbidden())
		assert.True(t, Is(err, ErrCodePortalForbidden))
		assert.False(t, Is(err, ErrCodeHTTP))
	})
}

func portalForbidden() *AppError {
	return Classify(model.ScopePortal, http.StatusForbidden, "", nil)
}
