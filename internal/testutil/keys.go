package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeterministicEd25519Key expands label into an ed25519 keypair via HKDF
// over a fixed test master secret, so authentication-fixture tests that
// need a real signature (rather than a NativeVM stub that always accepts)
// get the same keypair on every run without touching crypto/rand or
// checking a generated key into the repo.
func DeterministicEd25519Key(label string) (ed25519.PublicKey, ed25519.PrivateKey) {
	const masterSecret = "chainkernel-test-fixture-master-secret"
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(label))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		panic(err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv
}
