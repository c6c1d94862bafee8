package tokenstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	_, err = s.Load("U1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("U1", "tok-1"))
	require.NoError(t, s.Save(" U2 ", "tok-2"))
	require.NoError(t, s.Save("U1", "tok-1b"))

	e, err := s.Load("U1")
	require.NoError(t, err)
	assert.Equal(t, &Entry{UserID: "U1", Token: "tok-1b", SavedAt: fixed}, e)

	users, err := s.Users()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"U1", "U2"}, users)

	require.NoError(t, s.Delete("U1"))
	require.NoError(t, s.Delete("missing"))
	_, err = s.Load("U1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreValidation(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)

	s, err := OpenWithOptions(Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Save("", "tok"))
	assert.Error(t, s.Save("U1", ""))
	_, err = s.Load("  ")
	assert.Error(t, err)
}

func TestEncryptedStore(t *testing.T) {
	dir := t.TempDir()
	key, err := ParseKey(strings.Repeat("ab", 32))
	require.NoError(t, err)

	s, err := OpenWithOptions(Options{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, s.Save("U1", "secret"))
	require.NoError(t, s.Close())

	s, err = OpenWithOptions(Options{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()
	e, err := s.Load("U1")
	require.NoError(t, err)
	assert.Equal(t, "secret", e.Token)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw     string
		wantLen int
		wantErr bool
	}{
		{raw: "", wantLen: 0},
		{raw: strings.Repeat("0f", 16), wantLen: 16},
		{raw: "0x" + strings.Repeat("0f", 32), wantLen: 32},
		{raw: strings.Repeat("0f", 10), wantErr: true},
		{raw: "zz", wantErr: true},
	}
	for _, tt := range tests {
		b, err := ParseKey(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Len(t, b, tt.wantLen)
	}
}
