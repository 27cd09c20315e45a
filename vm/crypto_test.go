package vm

import (
	"crypto/ed25519"
	"testing"

	"chainkernel/internal/testutil"
)

func signEd25519(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// This repo's NativeVM fixtures call no crypto host import (they all
// authenticate unconditionally), so Ed25519Verify is covered directly
// here against a deterministic keypair.
func TestCryptoApiEd25519VerifyRoundTrip(t *testing.T) {
	pub, priv := testutil.DeterministicEd25519Key("tx-credential")
	msg := []byte("chainkernel finalize-mode credential")
	sig := signEd25519(priv, msg)

	api := NewCryptoApi()
	if !api.Ed25519Verify(msg, sig, pub) {
		t.Fatalf("expected a signature produced by the matching private key to verify")
	}
	if api.Ed25519Verify([]byte("tampered"), sig, pub) {
		t.Fatalf("expected verification to fail against a different message")
	}

	otherPub, _ := testutil.DeterministicEd25519Key("a-different-label")
	if api.Ed25519Verify(msg, sig, otherPub) {
		t.Fatalf("expected verification to fail against a different key")
	}
}

func TestCryptoApiHashPrimitives(t *testing.T) {
	api := NewCryptoApi()
	data := []byte("chainkernel")

	sha := api.Sha256(data)
	if sha == ([32]byte{}) {
		t.Fatalf("expected a non-zero sha256 digest")
	}
	b3 := api.Blake3(data)
	if b3 == ([32]byte{}) {
		t.Fatalf("expected a non-zero blake3 digest")
	}
	kec := api.Keccak256(data)
	if kec == ([32]byte{}) {
		t.Fatalf("expected a non-zero keccak256 digest")
	}
	if sha == b3 || sha == kec || b3 == kec {
		t.Fatalf("expected distinct hash functions to disagree on the same input")
	}
}
