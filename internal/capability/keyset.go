package capability

import (
	"encoding/json"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/pkg/errors"
)

const jwkUseSignature = "sig"

// PublicKeySet renders pairs as the JSON Web Key Set document spec section 6
// describes for GET /.well-known/jwks.json: entries carry {kty,kid,alg,use,crv,x}
// for each published Ed25519 key, oldest and newest alike, so tokens signed under a
// rotated-out key id keep verifying until they expire naturally.
func PublicKeySet(pairs []*KeyPair) ([]byte, error) {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(pairs))}
	for _, kp := range pairs {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       kp.PublicKey,
			KeyID:     kp.KID,
			Algorithm: "EdDSA",
			Use:       jwkUseSignature,
		})
	}
	bs, err := json.Marshal(set)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling public key set")
	}
	return bs, nil
}

// ParseKeySet parses a JWKS document fetched from the Controller's well-known
// location into a lookup by key id, for use by Verify.
func ParseKeySet(bs []byte) (map[string]jose.JSONWebKey, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(bs, &set); err != nil {
		return nil, errors.Wrap(err, "error parsing public key set")
	}
	byKID := make(map[string]jose.JSONWebKey, len(set.Keys))
	for _, k := range set.Keys {
		byKID[k.KeyID] = k
	}
	return byKID, nil
}
