package users

// Account is the identity service's view of a user: the public record plus the
// credentials needed to authenticate it. Only the stub identity service uses it.
type Account struct {
	User
	PasswordHash string `json:"-"` // bcrypt hash, never serialized
	TOTPSecret   string `json:"-"` // base32 TOTP secret; empty disables 2FA
	Blocked      bool   `json:"blocked,omitempty"`
}

// TwoFactorEnabled reports whether login must go through a 2FA challenge.
func (a *Account) TwoFactorEnabled() bool {
	return a.TOTPSecret != ""
}

// CanLogin reports whether the account may authenticate at all.
func (a *Account) CanLogin() bool {
	return a.IsActive && !a.Blocked
}
