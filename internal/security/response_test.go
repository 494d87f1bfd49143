package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseSealerRoundTrip(t *testing.T) {
	s, err := NewResponseSealer("s3cret")
	require.NoError(t, err)

	body := []byte(`{"success":true,"data":{"id":"t-1"}}`)
	sealed, err := s.Seal(body)
	require.NoError(t, err)
	assert.NotContains(t, sealed.Payload, "success")

	got, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	other, err := NewResponseSealer("other")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestResponseSealerNeedsSecret(t *testing.T) {
	_, err := NewResponseSealer("")
	assert.Error(t, err)
}
