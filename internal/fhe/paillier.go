// paillier.go - Paillier cryptosystem over math/big.
//
// Implements the additively homomorphic encryption scheme the coprocessor
// computes on: Enc(a)·Enc(b) = Enc(a+b) mod n², Enc(a)·Enc(b)⁻¹ = Enc(a−b).
// Uses the g = n+1 generator so decryption needs only λ and µ = λ⁻¹ mod n.

package fhe

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

var one = big.NewInt(1)

// PublicKey holds the Paillier public parameters (n, n²).
type PublicKey struct {
	N  *big.Int
	N2 *big.Int
}

// PrivateKey holds the full Paillier key material.
// λ = lcm(p−1, q−1), µ = λ⁻¹ mod n.
type PrivateKey struct {
	PublicKey
	Lambda *big.Int
	Mu     *big.Int
}

// GenerateKey generates a Paillier keypair with an n of the given bit size.
// bits must be at least 512; production deployments should use 2048 or more.
func GenerateKey(bits int) (*PrivateKey, error) {
	if bits < 512 {
		return nil, errors.New("paillier: modulus must be at least 512 bits")
	}
	for {
		p, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, fmt.Errorf("paillier: prime generation failed: %w", err)
		}
		q, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, fmt.Errorf("paillier: prime generation failed: %w", err)
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		pm1 := new(big.Int).Sub(p, one)
		qm1 := new(big.Int).Sub(q, one)
		gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
		lambda := new(big.Int).Div(new(big.Int).Mul(pm1, qm1), gcd)
		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			continue
		}
		return &PrivateKey{
			PublicKey: PublicKey{N: n, N2: new(big.Int).Mul(n, n)},
			Lambda:    lambda,
			Mu:        mu,
		}, nil
	}
}

// Encrypt encrypts m under pk with fresh randomness.
// c = (1 + m·n) · rⁿ mod n².
func (pk *PublicKey) Encrypt(m *big.Int) (*big.Int, error) {
	if m.Sign() < 0 || m.Cmp(pk.N) >= 0 {
		return nil, errors.New("paillier: plaintext out of range")
	}
	r, err := randomUnit(pk.N)
	if err != nil {
		return nil, err
	}
	gm := new(big.Int).Mul(m, pk.N)
	gm.Add(gm, one)
	gm.Mod(gm, pk.N2)
	rn := new(big.Int).Exp(r, pk.N, pk.N2)
	return gm.Mul(gm, rn).Mod(gm, pk.N2), nil
}

// EncryptUint64 encrypts a 64-bit value.
func (pk *PublicKey) EncryptUint64(v uint64) (*big.Int, error) {
	return pk.Encrypt(new(big.Int).SetUint64(v))
}

// Decrypt recovers the plaintext of c.
// m = L(c^λ mod n²)·µ mod n with L(u) = (u−1)/n.
func (sk *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if c.Sign() <= 0 || c.Cmp(sk.N2) >= 0 {
		return nil, errors.New("paillier: ciphertext out of range")
	}
	u := new(big.Int).Exp(c, sk.Lambda, sk.N2)
	u.Sub(u, one)
	u.Div(u, sk.N)
	u.Mul(u, sk.Mu)
	return u.Mod(u, sk.N), nil
}

// AddCipher returns a ciphertext of the sum of the two plaintexts.
func (pk *PublicKey) AddCipher(c1, c2 *big.Int) *big.Int {
	z := new(big.Int).Mul(c1, c2)
	return z.Mod(z, pk.N2)
}

// SubCipher returns a ciphertext of the difference of the two plaintexts.
// The result wraps mod n when the subtrahend exceeds the minuend; callers
// must gate debits on a Gte reveal first.
func (pk *PublicKey) SubCipher(c1, c2 *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(c2, pk.N2)
	if inv == nil {
		return nil, errors.New("paillier: ciphertext not invertible")
	}
	z := inv.Mul(c1, inv)
	return z.Mod(z, pk.N2), nil
}

// randomUnit samples r in [1, n) with gcd(r, n) = 1.
func randomUnit(n *big.Int) (*big.Int, error) {
	gcd := new(big.Int)
	for {
		r, err := rand.Int(rand.Reader, n)
		if err != nil {
			return nil, fmt.Errorf("paillier: randomness failed: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}
		if gcd.GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
}
