package users_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestFromAuthentication(t *testing.T) {
	t.Run("email identifier", func(t *testing.T) {
		u, err := users.FromAuthentication(1, "internal_user", "a@b.com")
		require.NoError(t, err)
		require.Equal(t, "a@b.com", u.Email)
		require.Equal(t, "a", u.Username)
		require.True(t, u.IsInternal())
		require.True(t, u.CanAccessDashboard)
		require.True(t, u.IsActive)
	})

	t.Run("username identifier", func(t *testing.T) {
		u, err := users.FromAuthentication(9, "institutional_user", " jperez ")
		require.NoError(t, err)
		require.Equal(t, "jperez", u.Username)
		require.Empty(t, u.Email)
		require.True(t, u.IsInstitutional())
		require.False(t, u.CanAccessDashboard)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := users.FromAuthentication(1, "admin", "x")
		require.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := users.FromAuthentication(0, "internal_user", "x")
		require.Error(t, err)
	})
}

func TestEncodeDecode(t *testing.T) {
	u, err := users.FromAuthentication(3, "internal", "ana@galileo.edu")
	require.NoError(t, err)

	raw, err := u.Encode()
	require.NoError(t, err)

	decoded, err := users.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, u, decoded)
}

func TestDecodeFailsClosed(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":        "",
		"not json":     "{oops",
		"missing id":   `{"user_type":"internal_user"}`,
		"unknown type": `{"id":4,"user_type":"root"}`,
		"wrong shape":  `[1,2,3]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := users.Decode(raw)
			require.Error(t, err)
		})
	}
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Ana Ruiz", (&users.User{FirstName: "Ana", LastName: "Ruiz", Username: "aruiz"}).DisplayName())
	require.Equal(t, "aruiz", (&users.User{Username: "aruiz"}).DisplayName())
	require.Equal(t, "", (*users.User)(nil).DisplayName())
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("Secreto123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Secreto123", hash))
	require.False(t, users.CheckPasswordHash("otro", hash))
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	acc := &users.Account{User: users.User{Username: "ana", Email: "Ana@Galileo.edu", UserType: users.InternalUser, IsActive: true}}
	require.NoError(t, repo.Upsert(acc))
	require.Equal(t, 1, acc.ID)

	byEmail, err := repo.GetByIdentifier("ana@galileo.edu")
	require.NoError(t, err)
	require.Same(t, acc, byEmail)

	byName, err := repo.GetByIdentifier("ANA")
	require.NoError(t, err)
	require.Same(t, acc, byName)

	_, err = repo.GetByID(2)
	require.Error(t, err)
	require.True(t, acc.CanLogin())
	require.False(t, acc.TwoFactorEnabled())
}
