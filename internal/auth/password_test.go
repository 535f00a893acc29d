package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestCredentialsAuthenticate(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)

	creds, err := NewCredentials([]Operator{
		{Name: "alice", PasswordHash: hash, Role: RoleOperator},
		{Name: "bob", PasswordHash: hash},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, creds.Len())

	role, err := creds.Authenticate("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, role)

	role, err = creds.Authenticate("bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, role)

	_, err = creds.Authenticate("alice", "nope")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = creds.Authenticate("carol", "pw")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestNewCredentialsRejectsBadEntries(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)

	_, err = NewCredentials([]Operator{{Name: "x", PasswordHash: "plain", Role: RoleOperator}})
	assert.Error(t, err)

	_, err = NewCredentials([]Operator{{Name: "x", PasswordHash: hash, Role: "admin"}})
	assert.Error(t, err)

	_, err = NewCredentials([]Operator{{Name: "x", PasswordHash: hash}, {Name: "x", PasswordHash: hash}})
	assert.Error(t, err)
}
