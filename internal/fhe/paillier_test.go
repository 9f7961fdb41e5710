package fhe

import (
	"bytes"
	"math/big"
	"testing"
)

// 512-bit keys keep the suite fast; the homomorphic identities under test do
// not depend on key size.
const testBits = 512

func testKey(t *testing.T) *PrivateKey {
	t.Helper()
	key, err := GenerateKey(testBits)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	return key
}

func TestPaillierRoundTrip(t *testing.T) {
	key := testKey(t)
	for _, v := range []uint64{0, 1, 42, 1000, 1<<63 + 7} {
		ct, err := key.EncryptUint64(v)
		if err != nil {
			t.Fatalf("encrypt %d failed: %v", v, err)
		}
		m, err := key.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if m.Uint64() != v {
			t.Errorf("roundtrip %d gave %s", v, m)
		}
	}
}

func TestPaillierEncryptionIsRandomized(t *testing.T) {
	key := testKey(t)
	c1, err := key.EncryptUint64(42)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	c2, err := key.EncryptUint64(42)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if c1.Cmp(c2) == 0 {
		t.Error("two encryptions of the same plaintext produced equal ciphertexts")
	}
}

func TestPaillierAdditiveHomomorphism(t *testing.T) {
	key := testKey(t)

	t.Run("Sum Of Ciphertexts", func(t *testing.T) {
		ca, _ := key.EncryptUint64(700)
		cb, _ := key.EncryptUint64(300)
		sum := key.AddCipher(ca, cb)
		m, err := key.Decrypt(sum)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if m.Uint64() != 1000 {
			t.Errorf("700 + 300 = %s", m)
		}
	})

	t.Run("Difference Of Ciphertexts", func(t *testing.T) {
		ca, _ := key.EncryptUint64(1000)
		cb, _ := key.EncryptUint64(300)
		diff, err := key.SubCipher(ca, cb)
		if err != nil {
			t.Fatalf("SubCipher failed: %v", err)
		}
		m, err := key.Decrypt(diff)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if m.Uint64() != 700 {
			t.Errorf("1000 - 300 = %s", m)
		}
	})

	t.Run("Underflow Wraps In Plaintext Group", func(t *testing.T) {
		ca, _ := key.EncryptUint64(1)
		cb, _ := key.EncryptUint64(2)
		diff, err := key.SubCipher(ca, cb)
		if err != nil {
			t.Fatalf("SubCipher failed: %v", err)
		}
		m, err := key.Decrypt(diff)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		want := new(big.Int).Sub(key.N, one)
		if m.Cmp(want) != 0 {
			t.Errorf("1 - 2 = %s, want n-1", m)
		}
	})
}

func TestGenerateKeyRejectsSmallSizes(t *testing.T) {
	if _, err := GenerateKey(128); err == nil {
		t.Error("expected an error for a 128-bit modulus")
	}
}

func TestBindingDigest(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a := BindingDigest([]byte("alpha"), []byte("beta"))
		b := BindingDigest([]byte("alpha"), []byte("beta"))
		if !bytes.Equal(a, b) {
			t.Error("digest is not deterministic")
		}
	})

	t.Run("Part Boundaries Matter", func(t *testing.T) {
		a := BindingDigest([]byte("alphabe"), []byte("ta"))
		b := BindingDigest([]byte("alpha"), []byte("beta"))
		if bytes.Equal(a, b) {
			t.Error("resplit parts produced the same digest")
		}
	})

	t.Run("Arbitrary Lengths Accepted", func(t *testing.T) {
		for n := 0; n < 100; n++ {
			part := make([]byte, n)
			if d := BindingDigest(part); len(d) == 0 {
				t.Fatalf("empty digest for %d-byte part", n)
			}
		}
	})
}
