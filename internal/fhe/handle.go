// handle.go - Opaque handle type and input admission binding.
//
// A Handle is the only reference the ledger ever holds to an encrypted value.
// Handle identity is ciphertext identity: Keccak-256 of the ciphertext bytes
// plus a kind tag, so re-admitting the same ciphertext yields the same handle.

package fhe

import (
	"bytes"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

// Handle is an opaque reference to an encrypted value held by the coprocessor.
type Handle common.Hash

// Hex returns the 0x-prefixed hex encoding of the handle.
func (h Handle) Hex() string { return common.Hash(h).Hex() }

// IsZero reports whether the handle is the uninitialized zero handle.
func (h Handle) IsZero() bool { return h == Handle{} }

// Bytes returns the handle as a byte slice.
func (h Handle) Bytes() []byte { return common.Hash(h).Bytes() }

// HandleFromHex parses a 0x-prefixed hex handle.
func HandleFromHex(s string) Handle { return Handle(common.HexToHash(s)) }

// MarshalJSON encodes the handle as a hex string.
func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

// UnmarshalJSON decodes a hex string handle.
func (h *Handle) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*h = HandleFromHex(s)
	return nil
}

// kind tags the plaintext domain of a handle.
type kind byte

const (
	kindUint64 kind = iota
	kindBool
)

// deriveHandle computes the content-addressed handle for a ciphertext.
func deriveHandle(c *big.Int, k kind) Handle {
	return Handle(crypto.Keccak256Hash(c.Bytes(), []byte{byte(k)}))
}

// bindingBlock is the MiMC block size for BW6-761 (48 bytes); binding input
// is chunked into 31-byte pieces left-padded to one block each, so every
// block is a canonical field element and Write never rejects.
const (
	bindingBlock = 48
	bindingChunk = 31
)

// BindingDigest computes the admission proof digest over the given parts.
// Each part is length-prefixed before chunking so parts cannot be resplit.
func BindingDigest(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		var lenPrefix [8]byte
		n := len(p)
		for i := 7; i >= 0; i-- {
			lenPrefix[i] = byte(n)
			n >>= 8
		}
		buf.Write(lenPrefix[:])
		buf.Write(p)
	}
	h := mimcNative.NewMiMC()
	data := buf.Bytes()
	block := make([]byte, bindingBlock)
	for off := 0; off < len(data); off += bindingChunk {
		end := off + bindingChunk
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		for i := range block {
			block[i] = 0
		}
		copy(block[bindingBlock-len(chunk):], chunk)
		h.Write(block)
	}
	return h.Sum(nil)
}

// EncryptInput encrypts values for submission to a contract and produces the
// admission proof binding the ciphertexts to submitter and contract. This is
// the client-side counterpart of Coprocessor.VerifyInputs.
func EncryptInput(pk *PublicKey, contract, submitter common.Address, values ...uint64) ([][]byte, []byte, error) {
	cts := make([][]byte, len(values))
	parts := make([][]byte, 0, len(values)+2)
	for i, v := range values {
		c, err := pk.EncryptUint64(v)
		if err != nil {
			return nil, nil, err
		}
		cts[i] = c.Bytes()
		parts = append(parts, cts[i])
	}
	parts = append(parts, submitter.Bytes(), contract.Bytes())
	return cts, BindingDigest(parts...), nil
}
