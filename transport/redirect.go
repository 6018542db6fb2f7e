package transport

import (
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
)

// Redirector sends the user back to the login surface
type Redirector interface {
	RedirectToLogin(reason apperrors.Reason)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(reason apperrors.Reason)

func (f RedirectFunc) RedirectToLogin(reason apperrors.Reason) {
	f(reason)
}

type noopRedirector struct{}

func (noopRedirector) RedirectToLogin(apperrors.Reason) {}
