package errors

// Presentation tells the UI layer how to surface an error.
type Presentation string

const (
	PresentToast            Presentation = "toast"
	PresentInlineBanner     Presentation = "inline_banner"
	PresentRetryScreen      Presentation = "retry_screen"
	PresentLogin            Presentation = "login"
	PresentAccessRestricted Presentation = "access_restricted"
	PresentPortalRefresh    Presentation = "portal_refresh"
)

// Present is the exhaustive matcher used at the UI boundary.
func Present(err error) Presentation {
	appErr, ok := AsAppError(err)
	if !ok {
		return PresentToast
	}

	switch appErr.Code {
	case ErrCodeNetwork:
		return PresentRetryScreen
	case ErrCodeAuthRequired, ErrCodeReauthRequired:
		return PresentLogin
	case ErrCodePortalAuthRequired, ErrCodePortalReauthRequired:
		return PresentLogin
	case ErrCodePortalAcademyRequired:
		return PresentInlineBanner
	case ErrCodePortalForbidden:
		return PresentAccessRestricted
	case ErrCodePortalSessionInvalid, ErrCodePortalTryOutMissing:
		return PresentPortalRefresh
	case ErrCodeHTTP:
		return PresentToast
	default:
		return PresentToast
	}
}

// ClearsPortalCredentials reports whether the error kind tears down portal credentials.
func ClearsPortalCredentials(err error) bool {
	return Is(err, ErrCodePortalReauthRequired)
}
