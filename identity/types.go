package identity

// Wire types of the Identity Service. Field names follow its snake_case JSON.

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	DeviceName string `json:"device_name,omitempty"`
}

// LoginResponse carries either a session (Success) or a two-factor challenge
// (Requires2FA). The service reports Success=false alongside a challenge.
type LoginResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	UserID        int    `json:"user_id,omitempty"`
	UserType      string `json:"user_type,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	Requires2FA   bool   `json:"requires_2fa"`
	TempSessionID string `json:"temp_session_id,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

type Verify2FARequest struct {
	TempSessionID string `json:"temp_session_id"`
	Code          string `json:"code"`
}

type Verify2FAResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserID    int    `json:"user_id,omitempty"`
	UserType  string `json:"user_type,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type LogoutRequest struct {
	SessionID string `json:"session_id"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidateResponse struct {
	Valid         bool   `json:"valid"`
	Message       string `json:"message,omitempty"`
	UserID        int    `json:"user_id,omitempty"`
	UserType      string `json:"user_type,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	Is2FAVerified bool   `json:"is_2fa_verified,omitempty"`
}
