package capability

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// timeNow is overridden in tests to exercise the "exp equal to now" boundary from
// spec section 8, the same seam teacher's CurrentTimeNowInUTC var provides for its
// own token expiry logic.
var timeNow = time.Now

// Distinct verification failures, per spec section 4.2's "Fails with distinct
// errors for: malformed token, unknown key identifier, signature mismatch,
// expired, audience mismatch."
var (
	ErrMalformed        = errors.New("capability token is malformed")
	ErrUnknownKeyID     = errors.New("capability token references an unknown key id")
	ErrSignatureInvalid = errors.New("capability token signature is invalid")
	ErrExpired          = errors.New("capability token has expired")
	ErrAudienceMismatch = errors.New("capability token audience does not match")
)

// KeySource resolves a key id to the Ed25519 public key that should verify it.
// The Gateway's implementation fetches and caches the Controller's published key
// set; tests can substitute a map-backed fake.
type KeySource interface {
	PublicKey(kid string) (ed25519.PublicKey, error)
}

// Verify implements spec section 4.2's verify operation: it parses token, resolves
// the signing key via keys, and checks signature, expiry, and audience, returning
// the claim set only if every check passes.
func Verify(token string, expectedAudience string, keys KeySource) (*Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))

	var resolveErr error
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			resolveErr = ErrUnknownKeyID
			return nil, ErrUnknownKeyID
		}
		pub, err := keys.PublicKey(kid)
		if err != nil {
			resolveErr = fmt.Errorf("%w: %s", ErrUnknownKeyID, kid)
			return nil, resolveErr
		}
		return pub, nil
	})

	switch {
	case resolveErr != nil:
		return nil, resolveErr
	case err == nil:
		// fall through to the explicit checks below
	default:
		var verr *jwt.ValidationError
		if errors.As(err, &verr) {
			switch {
			case verr.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrExpired
			case verr.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, ErrSignatureInvalid
			case verr.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrMalformed
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	if !claims.ExpiresAt.Time.After(timeNow()) {
		return nil, ErrExpired
	}
	if !hasAudience(claims.Audience, expectedAudience) {
		return nil, ErrAudienceMismatch
	}

	return &claims, nil
}

func hasAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
