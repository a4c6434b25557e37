// Package capability implements the capability token service of spec section 4.2:
// minting and verifying short-lived, one-time, session-bound attach tokens signed
// with an asymmetric key, verified through a published JSON Web Key Set.
package capability

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims are the signed claims embedded in a capability token, per spec section 3's
// "Capability Token" entity: subject = ownerId, audience = "attach", session binding
// = sessionId, unique id = tokenId, issued-at, expires-at.
type Claims struct {
	jwt.RegisteredClaims

	// SessionBinding is the sessionId this token authorizes a single attach to.
	SessionBinding string `json:"sessionBinding"`
	// TokenID is the unique id recorded in the store at mint time and deleted at
	// attach time; it is also exposed as RegisteredClaims.ID but kept here too so
	// verifiers never have to reach into the registered-claims field by name.
	TokenID string `json:"tokenId"`
}

// Valid implements jwt.Claims on top of the registered-claims validation, adding
// nothing: expiry is still checked by jwt.Parser, audience/session binding are
// checked explicitly by Verify so their failures map to distinct apierror kinds
// instead of being folded into one generic "invalid token" error.
func (c Claims) Valid() error {
	return c.RegisteredClaims.Valid()
}

func newClaims(subject, sessionID, tokenID, audience string, issuedAt, expiresAt time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionBinding: sessionID,
		TokenID:        tokenID,
	}
}
