package server

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

const demoTOTPIssuer = "MediaLab Identity Stub"

// DemoAccount is a seeded account together with what is needed to log in as it.
type DemoAccount struct {
	Identifier string
	Password   string
	UserType   users.UserType
	TOTPSecret string // empty when the account has no 2FA
}

// SeedDemoAccounts creates an internal user without 2FA and an institutional
// user with 2FA. A blank password is replaced by a generated one.
func SeedDemoAccounts(accounts users.AccountRepo, password string) ([]DemoAccount, error) {
	if password == "" {
		generated, err := generatePassword()
		if err != nil {
			return nil, errors.Wrap(err, "SeedDemoAccounts")
		}
		password = generated
	}
	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	staff := &users.Account{
		User: users.User{
			UserType:           users.InternalUser,
			Username:           "maria.gonzalez",
			Email:              "maria.gonzalez@medialab.galileo.edu",
			FirstName:          "María",
			LastName:           "González",
			IsActive:           true,
			CanAccessDashboard: true,
		},
		PasswordHash: passwordHash,
	}

	facultyEmail := "jose.perez@galileo.edu"
	secret, err := token.NewTOTPSecret(demoTOTPIssuer, facultyEmail)
	if err != nil {
		return nil, errors.Wrap(err, "SeedDemoAccounts")
	}
	faculty := &users.Account{
		User: users.User{
			UserType:  users.InstitutionalUser,
			Username:  "jose.perez",
			Email:     facultyEmail,
			FirstName: "José",
			LastName:  "Pérez",
			IsActive:  true,
		},
		PasswordHash: passwordHash,
		TOTPSecret:   secret,
	}

	var seeded []DemoAccount
	for _, account := range []*users.Account{staff, faculty} {
		if existing, err := accounts.GetByIdentifier(account.Email); err == nil && existing != nil {
			continue
		}
		if err := accounts.Upsert(account); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", account.Email)
		}
		seeded = append(seeded, DemoAccount{
			Identifier: account.Email,
			Password:   password,
			UserType:   account.UserType,
			TOTPSecret: account.TOTPSecret,
		})
	}
	return seeded, nil
}

// LogDemoAccounts prints the seeded credentials in development.
func (s *Server) LogDemoAccounts(accounts []DemoAccount) {
	if s.env != "DEV" {
		return
	}
	for _, a := range accounts {
		event := s.logger.Info().
			Str("identifier", a.Identifier).
			Str("password", a.Password).
			Str("user_type", string(a.UserType))
		if a.TOTPSecret != "" {
			event = event.Str("totp_secret", a.TOTPSecret)
		}
		event.Msg("demo account")
	}
}

func generatePassword() (string, error) {
	passwordBytes := make([]byte, 16)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", errors.Wrap(err, "failed to generate password")
	}
	return base64.URLEncoding.EncodeToString(passwordBytes), nil
}
