package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey([]byte("pw"), []byte("salt-salt-salt-1"))
	b := DeriveKey([]byte("pw"), []byte("salt-salt-salt-1"))
	c := DeriveKey([]byte("pw"), []byte("salt-salt-salt-2"))

	assert.Len(t, a, 32)
	assert.True(t, bytes.Equal(a, b))
	assert.False(t, bytes.Equal(a, c))
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("server-secret")
	require.NoError(t, err)

	sealed, err := s.Seal("nextcloud-app-password")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "nextcloud-app-password")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "nextcloud-app-password", plain)

	again, err := s.Seal("nextcloud-app-password")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")
}

func TestSealer_PlainValuesPassThrough(t *testing.T) {
	s, err := NewSealer("k")
	require.NoError(t, err)

	got, err := s.Open("legacy-plain")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain", got)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSealer_WrongKeyOrGarbage(t *testing.T) {
	a, err := NewSealer("one")
	require.NoError(t, err)
	b, err := NewSealer("two")
	require.NoError(t, err)

	sealed, err := a.Seal("pw")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.True(t, errors.Is(err, ErrInvalidSealed))

	_, err = a.Open(SealedPrefix + "!!!")
	assert.True(t, errors.Is(err, ErrInvalidSealed))

	_, err = a.Open(SealedPrefix + "AA==")
	assert.True(t, errors.Is(err, ErrInvalidSealed))
}

func TestNewSealer_EmptySecret(t *testing.T) {
	_, err := NewSealer("")
	require.Error(t, err)
}
