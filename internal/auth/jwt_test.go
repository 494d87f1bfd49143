package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tm := NewTokenManager("secret", "securebank", time.Minute)

	tok, exp, err := tm.Issue("op-1", RoleManager)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	c, err := tm.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "op-1", c.OperatorID)
	assert.Equal(t, RoleManager, c.Role)
}

func TestParseRejects(t *testing.T) {
	tm := NewTokenManager("secret", "securebank", time.Minute)
	tok, _, err := tm.Issue("op-1", RoleViewer)
	require.NoError(t, err)

	_, err = NewTokenManager("other", "securebank", time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("secret", "someone-else", time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", "securebank", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue("op-1", RoleViewer)
	require.NoError(t, err)
	_, err = tm.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
