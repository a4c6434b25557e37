package capability

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"os"

	"github.com/pkg/errors"
)

const (
	pemPrivateBlockType = "PRIVATE KEY"
	kidPrefix           = "ed25519-"
	kidLength           = 8
)

// KeyPair is one Ed25519 signing key, identified by a key identifier that is stable
// for the lifetime of the key and globally unique across rotations (spec section 4.2).
type KeyPair struct {
	KID        string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 key pair with a content-derived key id, so
// rotating keys never collides with a previous key id by accident.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "error generating ed25519 key pair")
	}
	return &KeyPair{KID: kidFor(pub), PublicKey: pub, PrivateKey: priv}, nil
}

func kidFor(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return kidPrefix + hex.EncodeToString(sum[:])[:kidLength]
}

// LoadOrGenerateKeyRing loads every PEM-encoded Ed25519 private key stored at path,
// oldest first, generating and persisting a single fresh key if the file does not
// yet exist -- the signing-key analogue of the Controller's first-start admin-key
// bootstrapping in the teacher's internal/db package (initAuthKeys). The key
// material file is a keyring: one PEM block per rotation (spec section 4.2), so
// tokens signed under an older kid keep verifying as long as its block is still
// present.
func LoadOrGenerateKeyRing(path string) ([]*KeyPair, error) {
	bs, err := os.ReadFile(path) // #nosec G304 -- operator-supplied key material path
	switch {
	case err == nil:
		return decodePEMKeyRing(bs)
	case os.IsNotExist(err):
		kp, genErr := GenerateKeyPair()
		if genErr != nil {
			return nil, genErr
		}
		ring := []*KeyPair{kp}
		if writeErr := persistPEMKeyRing(path, ring); writeErr != nil {
			return nil, writeErr
		}
		return ring, nil
	default:
		return nil, errors.Wrapf(err, "error reading key material %s", path)
	}
}

// ActiveKey returns the key new tokens should be signed with: the most recently
// added entry in ring, per LoadOrGenerateKeyRing/RotateKey's oldest-first ordering.
func ActiveKey(ring []*KeyPair) *KeyPair {
	return ring[len(ring)-1]
}

// RotateKey implements spec section 4.2's key rotation operation: it generates a
// fresh Ed25519 key pair, appends it to the key ring already at path (if the file
// does not yet exist, LoadOrGenerateKeyRing first bootstraps a one-key ring, so the
// result holds two keys), persists the full ring, and
// returns the new key alongside the updated ring so the caller can publish it.
// Keys already in the ring are never removed here -- a token signed under an older
// kid must keep verifying until it expires naturally, per spec section 4.2.
func RotateKey(path string) (fresh *KeyPair, ring []*KeyPair, err error) {
	ring, err = LoadOrGenerateKeyRing(path)
	if err != nil {
		return nil, nil, err
	}

	fresh, err = GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	ring = append(ring, fresh)

	if err := persistPEMKeyRing(path, ring); err != nil {
		return nil, nil, err
	}
	return fresh, ring, nil
}

func decodePEMKeyRing(bs []byte) ([]*KeyPair, error) {
	var ring []*KeyPair
	for rest := bs; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != pemPrivateBlockType {
			return nil, errors.New("key material is not a PEM-encoded private key")
		}
		if len(block.Bytes) != ed25519.PrivateKeySize {
			return nil, errors.New("key material is not an ed25519 private key")
		}
		priv := ed25519.PrivateKey(block.Bytes)
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("unable to derive ed25519 public key from private key")
		}
		ring = append(ring, &KeyPair{KID: kidFor(pub), PublicKey: pub, PrivateKey: priv})
	}
	if len(ring) == 0 {
		return nil, errors.New("key material does not contain any PEM-encoded private keys")
	}
	return ring, nil
}

func persistPEMKeyRing(path string, ring []*KeyPair) error {
	var out []byte
	for _, kp := range ring {
		block := &pem.Block{Type: pemPrivateBlockType, Bytes: kp.PrivateKey}
		out = append(out, pem.EncodeToMemory(block)...)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return errors.Wrapf(err, "error persisting key material to %s", path)
	}
	return nil
}
