// Package errors normalizes every failure the coordinator can see (transport
// errors, HTTP error responses, local precondition failures) into one taxonomy.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a normalized error.
type Kind string

const (
	KindNetwork              Kind = "network_error"
	KindUnauthenticated      Kind = "unauthenticated"
	KindInvalidCredentials   Kind = "invalid_credentials"
	KindInvalidTwoFactorCode Kind = "invalid_two_factor_code"
	KindNoTempSession        Kind = "no_temp_session"
	KindTempSessionExpired   Kind = "temp_session_expired"
	KindService              Kind = "service_error"
)

// Sentinels, one per Kind, for errors.Is checks.
var (
	ErrNetwork              = errors.New("network error")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrNoTempSession        = errors.New("no temporary session")
	ErrTempSessionExpired   = errors.New("temporary session expired")
	ErrService              = errors.New("service error")
)

var sentinels = map[Kind]error{
	KindNetwork:              ErrNetwork,
	KindUnauthenticated:      ErrUnauthenticated,
	KindInvalidCredentials:   ErrInvalidCredentials,
	KindInvalidTwoFactorCode: ErrInvalidTwoFactorCode,
	KindNoTempSession:        ErrNoTempSession,
	KindTempSessionExpired:   ErrTempSessionExpired,
	KindService:              ErrService,
}

// Fallback messages shown when the service does not supply one.
var fallbackMessages = map[Kind]string{
	KindNetwork:              "Error de conexión. Verifique su conexión a internet e intente nuevamente.",
	KindUnauthenticated:      "Su sesión ha expirado. Inicie sesión nuevamente.",
	KindInvalidCredentials:   "Usuario o contraseña incorrectos.",
	KindInvalidTwoFactorCode: "Código de verificación inválido.",
	KindNoTempSession:        "No hay una verificación en curso. Inicie sesión nuevamente.",
	KindTempSessionExpired:   "El código de verificación ha expirado. Inicie sesión nuevamente.",
	KindService:              "Ocurrió un error inesperado. Intente nuevamente.",
}

// Error is the normalized error. Message is always safe to show to the user.
type Error struct {
	Kind     Kind
	Status   int    // HTTP status when the failure came from a response, else 0
	Message  string // service supplied message, or the localized fallback
	Internal error  // underlying cause, for logging only
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// New builds an Error of the given kind. An empty message selects the fallback.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = FallbackMessage(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// FallbackMessage returns the localized generic message for kind.
func FallbackMessage(kind Kind) string {
	if m, ok := fallbackMessages[kind]; ok {
		return m
	}
	return fallbackMessages[KindService]
}

func NoTempSession() *Error {
	return New(KindNoTempSession, "")
}

func TempSessionExpired() *Error {
	return New(KindTempSessionExpired, "")
}

func Unauthenticated(cause error) *Error {
	e := New(KindUnauthenticated, "")
	e.Internal = cause
	return e
}

// KindOf returns the Kind of a normalized error, KindService for anything else
// and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindService
}

// Message returns the user facing message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return FallbackMessage(KindService)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
