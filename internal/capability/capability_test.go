package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

func newTestSigner(t *testing.T) (*Signer, *KeyPair) {
	t.Helper()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	return NewSigner(kp, kp), kp
}

func TestMintVerifyRoundTrip(t *testing.T) {
	signer, kp := newTestSigner(t)
	keys := NewStaticKeySource([]*KeyPair{kp})

	tokenID, token, err := signer.Mint("owner-1", "session-1", model.AttachAudience, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenID)
	assert.NotEmpty(t, token)

	claims, err := Verify(token, model.AttachAudience, keys)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.Subject)
	assert.Equal(t, "session-1", claims.SessionBinding)
	assert.Equal(t, tokenID, claims.TokenID)
}

func TestMintNeverRepeatsTokenID(t *testing.T) {
	signer, _ := newTestSigner(t)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tokenID, _, err := signer.Mint("owner", "session", model.AttachAudience, time.Minute)
		require.NoError(t, err)
		require.False(t, seen[tokenID])
		seen[tokenID] = true
	}
}

func TestVerifyAudienceMismatch(t *testing.T) {
	signer, kp := newTestSigner(t)
	keys := NewStaticKeySource([]*KeyPair{kp})

	_, token, err := signer.Mint("owner", "session", "some-other-audience", time.Minute)
	require.NoError(t, err)

	_, err = Verify(token, model.AttachAudience, keys)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestVerifyUnknownKeyID(t *testing.T) {
	signer, _ := newTestSigner(t)
	otherKP, err := GenerateKeyPair()
	require.NoError(t, err)
	keys := NewStaticKeySource([]*KeyPair{otherKP})

	_, token, err := signer.Mint("owner", "session", model.AttachAudience, time.Minute)
	require.NoError(t, err)

	_, err = Verify(token, model.AttachAudience, keys)
	assert.ErrorIs(t, err, ErrUnknownKeyID)
}

func TestVerifyExpiredAtExactBoundary(t *testing.T) {
	signer, kp := newTestSigner(t)
	keys := NewStaticKeySource([]*KeyPair{kp})

	_, token, err := signer.Mint("owner", "session", model.AttachAudience, time.Minute)
	require.NoError(t, err)

	claims, err := Verify(token, model.AttachAudience, keys)
	require.NoError(t, err)

	original := timeNow
	defer func() { timeNow = original }()
	timeNow = func() time.Time { return claims.ExpiresAt.Time }

	_, err = Verify(token, model.AttachAudience, keys)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyMalformedToken(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	keys := NewStaticKeySource([]*KeyPair{kp})

	_, err = Verify("not-a-jwt-at-all", model.AttachAudience, keys)
	assert.Error(t, err)
}

func TestKeySetRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	bs, err := PublicKeySet([]*KeyPair{kp})
	require.NoError(t, err)

	byKID, err := ParseKeySet(bs)
	require.NoError(t, err)
	require.Contains(t, byKID, kp.KID)
}
