package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryAuthenticate(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	d := Directory{"ops": {PasswordHash: hash, Role: RoleManager}}

	role, err := d.Authenticate("ops", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, role)

	_, err = d.Authenticate("ops", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = d.Authenticate("nobody", "hunter2")
	assert.ErrorIs(t, err, ErrBadCredentials)
}
