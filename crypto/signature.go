package crypto

import (
	"crypto/ed25519"
	"errors"

	"github.com/nanospec/nanocore/primitives"
)

// Sign signs hash (the 32-byte block or vote hash) with priv and returns a
// fixed-width signature (spec §4.1: "Signature = ed25519 over the block
// hash").
func Sign(priv PrivateKey, hash primitives.BlockHash) primitives.Signature {
	sig := ed25519.Sign(ed25519.PrivateKey(priv), hash[:])
	var out primitives.Signature
	copy(out[:], sig)
	return out
}

// Verify checks sig against hash using pub.
func Verify(pub PublicKey, hash primitives.BlockHash, sig primitives.Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(pub), hash[:], sig[:]) {
		return errors.New("signature verification failed")
	}
	return nil
}
