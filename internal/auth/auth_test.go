package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sua-org/gidence-scm/internal/store"
)

func newTestKeys(t *testing.T) *KeyManager {
	t.Helper()
	keys, err := LoadOrGenerate(t.TempDir())
	require.NoError(t, err)
	return keys
}

func TestHashPassword_RoundTrips(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery staple")))
}

func TestSignAndParse_RoundTrips(t *testing.T) {
	s := &Service{Keys: newTestKeys(t)}
	user := store.User{ID: "user-1", Role: store.RoleUser, ClusterIDs: []string{"cluster-1"}}

	tok, err := s.sign(user, "access", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := s.parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "access", claims.Kind)
	assert.Equal(t, store.RoleUser, claims.Role)
}

func TestParse_RejectsExpiredToken(t *testing.T) {
	s := &Service{Keys: newTestKeys(t)}
	user := store.User{ID: "user-1"}

	tok, err := s.sign(user, "access", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = s.parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_StillVerifiesPreviousKeyWithinGraceWindow(t *testing.T) {
	keys := newTestKeys(t)
	s := &Service{Keys: keys}
	user := store.User{ID: "user-1"}

	tok, err := s.sign(user, "refresh", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, keys.Rotate())

	_, err = s.parse(tok)
	assert.NoError(t, err, "a token signed under the immediately-preceding key must still verify during the grace window")
}

func TestParse_RejectsKeyOlderThanGraceWindow(t *testing.T) {
	keys := newTestKeys(t)
	s := &Service{Keys: keys}
	user := store.User{ID: "user-1"}

	tok, err := s.sign(user, "refresh", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, keys.Rotate())
	require.NoError(t, keys.Rotate())

	_, err = s.parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "a key retired two rotations ago must fall outside the grace window")
}

func TestAuthenticate_RejectsRefreshToken(t *testing.T) {
	s := &Service{Keys: newTestKeys(t)}
	user := store.User{ID: "user-1"}

	tok, err := s.sign(user, "refresh", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = s.Authenticate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "a refresh token must not authenticate as an access token")
}

func TestKeyManager_RotateChangesKid(t *testing.T) {
	keys := newTestKeys(t)
	_, kid1 := keys.signingKey()

	require.NoError(t, keys.Rotate())
	_, kid2 := keys.signingKey()

	assert.NotEqual(t, kid1, kid2)
}

func TestLoadOrGenerate_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	_, kid1 := first.signingKey()

	second, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	_, kid2 := second.signingKey()

	assert.Equal(t, kid1, kid2, "a second load of the same directory must reuse the persisted key, not mint a new one")
}
