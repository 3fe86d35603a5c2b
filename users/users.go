package users

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UserType is the population a user belongs to.
type UserType string

const (
	InternalUser      UserType = "internal_user"      // MediaLab staff
	InstitutionalUser UserType = "institutional_user" // university faculty and staff
)

// ParseUserType accepts both the wire form ("internal_user") and the short form ("internal").
func ParseUserType(s string) (UserType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal_user", "internal":
		return InternalUser, nil
	case "institutional_user", "institutional":
		return InstitutionalUser, nil
	}
	return "", fmt.Errorf("unknown user type %q", s)
}

// User is the identity record kept alongside an authenticated session.
type User struct {
	ID                 int      `json:"id"`
	UserType           UserType `json:"user_type"`
	Username           string   `json:"username,omitempty"`
	Email              string   `json:"email,omitempty"`
	FirstName          string   `json:"first_name,omitempty"`
	LastName           string   `json:"last_name,omitempty"`
	IsActive           bool     `json:"is_active"`
	CanAccessDashboard bool     `json:"can_access_dashboard"`
}

// FromAuthentication builds the user record for a successful login or 2FA
// verification. The service only returns the id and type, so the display
// fields come from the identifier the user typed.
func FromAuthentication(userID int, userType, identifier string) (*User, error) {
	ut, err := ParseUserType(userType)
	if err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id %d", userID)
	}
	u := &User{
		ID:                 userID,
		UserType:           ut,
		IsActive:           true,
		CanAccessDashboard: ut == InternalUser,
	}
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		u.Email = identifier
		u.Username = strings.SplitN(identifier, "@", 2)[0]
	} else {
		u.Username = identifier
	}
	return u, nil
}

func (u *User) IsInternal() bool {
	return u != nil && u.UserType == InternalUser
}

func (u *User) IsInstitutional() bool {
	return u != nil && u.UserType == InstitutionalUser
}

// DisplayName prefers the full name, then the username, then the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Validate reports whether the record is usable as an authenticated identity.
func (u *User) Validate() error {
	if u == nil {
		return fmt.Errorf("nil user")
	}
	if u.ID <= 0 {
		return fmt.Errorf("invalid user id %d", u.ID)
	}
	if _, err := ParseUserType(string(u.UserType)); err != nil {
		return err
	}
	return nil
}

// Encode serializes the record for the client store.
func (u *User) Encode() (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored record. Malformed or incomplete data is an error so
// callers can treat it as absent.
func Decode(raw string) (*User, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty user record")
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
