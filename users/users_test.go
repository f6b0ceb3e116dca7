package users_test

import (
	"testing"

	"github.com/jrsteele09/bomani-client/internal/utils"
	"github.com/jrsteele09/bomani-client/users"
	"github.com/stretchr/testify/require"
)

func TestRegistrationRequest_Validate(t *testing.T) {
	valid := users.RegistrationRequest{
		Username:             "alice",
		Email:                "alice@example.com",
		Password:             "Secret123",
		PasswordConfirmation: "Secret123",
	}

	t.Run("valid", func(t *testing.T) {
		require.Nil(t, valid.Validate())
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		r := valid
		r.PasswordConfirmation = "Other123"
		fe := r.Validate()
		require.Equal(t, "Password fields didn't match.", fe.First("password2"))
		require.Empty(t, fe.First("password"))
	})

	t.Run("blank fields", func(t *testing.T) {
		fe := users.RegistrationRequest{}.Validate()
		require.Contains(t, fe, "username")
		require.Contains(t, fe, "email")
		require.Contains(t, fe, "password")
		require.Contains(t, fe, "password2")
	})

	t.Run("bad email", func(t *testing.T) {
		r := valid
		r.Email = "not-an-email"
		require.Equal(t, []string{"Enter a valid email address."}, r.Validate()["email"])
	})
}

func TestCredentials_Validate(t *testing.T) {
	require.Nil(t, users.Credentials{Username: "alice", Password: "x"}.Validate())
	fe := users.Credentials{Username: "  "}.Validate()
	require.Len(t, fe, 2)
}

func TestUser_Clone(t *testing.T) {
	u := &users.User{ID: 1, Username: "alice", Phone: utils.Ptr("+254712345678")}
	c := u.Clone()
	require.Equal(t, u, c)

	*c.Phone = "+254700000000"
	require.Equal(t, "+254712345678", utils.Value(u.Phone))

	var nilUser *users.User
	require.Nil(t, nilUser.Clone())
}
