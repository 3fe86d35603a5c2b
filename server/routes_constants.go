package server

// Route path constants
const (
	// Identity Service routes
	RouteAuthLogin           = "/auth/login"
	RouteAuthVerify2FA       = "/auth/verify-2fa"
	RouteAuthLogout          = "/auth/logout"
	RouteAuthValidateSession = "/auth/session/{session_id}/validate"

	// Session protected API routes
	RouteAPIMe = "/api/me"

	RouteHealth = "/health"
)
