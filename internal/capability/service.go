package capability

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Signer mints capability tokens. It holds every published key so that rotation
// (spec section 4.2) is just "add a key pair here and start signing with it" --
// old tokens keep verifying against the keys that are still listed.
type Signer struct {
	active *KeyPair
	all    []*KeyPair
}

// NewSigner builds a Signer that signs new tokens with active and publishes every
// key in all (which must include active) in its key set.
func NewSigner(active *KeyPair, all ...*KeyPair) *Signer {
	return &Signer{active: active, all: all}
}

// PublicKeySet renders the JWKS document for GET /.well-known/jwks.json.
func (s *Signer) PublicKeySet() ([]byte, error) {
	return PublicKeySet(s.all)
}

// Mint implements spec section 4.2's mint operation: it produces a freshly
// randomized tokenId, a signed token embedding all claims, and returns both.
func (s *Signer) Mint(subject, sessionID, audience string, ttl time.Duration) (tokenID, token string, err error) {
	now := time.Now().UTC()
	tokenID = uuid.New().String()
	claims := newClaims(subject, sessionID, tokenID, audience, now, now.Add(ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = s.active.KID

	signed, err := tok.SignedString(s.active.PrivateKey)
	if err != nil {
		return "", "", errors.Wrap(err, "error signing capability token")
	}
	return tokenID, signed, nil
}
