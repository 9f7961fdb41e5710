// backend.go - Trusted coprocessor: handle registry, homomorphic operations,
// access-control lists, and the decryption oracle.
//
// The coprocessor is the single component allowed to touch plaintext. It keeps
// a content-addressed table of admitted ciphertexts, mirrors the fhEVM model
// of verified-ciphertext handles, and enforces per-handle grants on every
// decryption request.

package fhe

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrAdmission is returned when a client ciphertext or its binding proof
	// fails verification. The caller must re-encrypt; the call is not retried.
	ErrAdmission = errors.New("fhe: ciphertext admission failed")
	// ErrUnknownHandle is returned for operations on handles the coprocessor
	// has never seen.
	ErrUnknownHandle = errors.New("fhe: unknown handle")
	// ErrNotAllowed is returned when a principal without a grant requests
	// decryption.
	ErrNotAllowed = errors.New("fhe: principal has no decryption grant")
	// ErrKindMismatch is returned when a boolean is used as an integer or
	// vice versa.
	ErrKindMismatch = errors.New("fhe: handle kind mismatch")
	// ErrDivisionByZero is returned by Div when the divisor decrypts to zero.
	ErrDivisionByZero = errors.New("fhe: division by zero")
	// ErrValueRange is returned when a decrypted value does not fit in the
	// handle's 64-bit plaintext domain.
	ErrValueRange = errors.New("fhe: decrypted value out of 64-bit range")
)

// entry is one admitted ciphertext with its access-control list.
type entry struct {
	cipher  *big.Int
	kind    kind
	trivial bool
	acl     map[common.Address]struct{}
}

// Coprocessor owns the Paillier key material and the handle table for one
// contract identity. All methods are safe for concurrent use.
type Coprocessor struct {
	mu       sync.RWMutex
	contract common.Address
	key      *PrivateKey
	entries  map[Handle]*entry
}

// NewCoprocessor creates a coprocessor serving the given contract identity,
// generating a fresh Paillier keypair of the given bit size.
func NewCoprocessor(contract common.Address, bits int) (*Coprocessor, error) {
	key, err := GenerateKey(bits)
	if err != nil {
		return nil, err
	}
	return &Coprocessor{
		contract: contract,
		key:      key,
		entries:  make(map[Handle]*entry),
	}, nil
}

// PublicKey returns the encryption key clients use to produce inputs.
func (c *Coprocessor) PublicKey() *PublicKey {
	return &c.key.PublicKey
}

// Contract returns the contract identity this coprocessor serves.
func (c *Coprocessor) Contract() common.Address {
	return c.contract
}

// VerifyInput admits a single client ciphertext. See VerifyInputs.
func (c *Coprocessor) VerifyInput(ct, proof []byte, submitter common.Address) (Handle, error) {
	hs, err := c.VerifyInputs([][]byte{ct}, proof, submitter)
	if err != nil {
		return Handle{}, err
	}
	return hs[0], nil
}

// VerifyInputs admits client ciphertexts covered by one binding proof. The
// proof must equal the MiMC digest over ciphertexts ‖ submitter ‖ contract;
// anything else fails with ErrAdmission and admits nothing.
func (c *Coprocessor) VerifyInputs(cts [][]byte, proof []byte, submitter common.Address) ([]Handle, error) {
	if len(cts) == 0 {
		return nil, fmt.Errorf("%w: no ciphertexts", ErrAdmission)
	}
	parts := make([][]byte, 0, len(cts)+2)
	values := make([]*big.Int, len(cts))
	for i, ct := range cts {
		v := new(big.Int).SetBytes(ct)
		if v.Sign() <= 0 || v.Cmp(c.key.N2) >= 0 {
			return nil, fmt.Errorf("%w: ciphertext out of range", ErrAdmission)
		}
		values[i] = v
		parts = append(parts, ct)
	}
	parts = append(parts, submitter.Bytes(), c.contract.Bytes())
	if !bytes.Equal(proof, BindingDigest(parts...)) {
		return nil, fmt.Errorf("%w: binding proof mismatch", ErrAdmission)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	handles := make([]Handle, len(values))
	for i, v := range values {
		h := c.register(v, kindUint64, false)
		// The submitter is the first owner of an admitted input.
		c.entries[h].acl[submitter] = struct{}{}
		handles[i] = h
	}
	return handles, nil
}

// TrivialEncrypt produces the deterministic, publicly decryptable handle for
// a clear constant. Used for default zero balances and comparison constants.
func (c *Coprocessor) TrivialEncrypt(v uint64) Handle {
	m := new(big.Int).SetUint64(v)
	ct := m.Mul(m, c.key.N)
	ct.Add(ct, one)
	ct.Mod(ct, c.key.N2)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(ct, kindUint64, true)
}

// register inserts a ciphertext into the handle table, granting the contract
// identity. Re-registering the same ciphertext keeps the existing ACL.
// Caller holds c.mu.
func (c *Coprocessor) register(ct *big.Int, k kind, trivial bool) Handle {
	h := deriveHandle(ct, k)
	if _, ok := c.entries[h]; !ok {
		c.entries[h] = &entry{
			cipher:  ct,
			kind:    k,
			trivial: trivial,
			acl:     map[common.Address]struct{}{c.contract: {}},
		}
	}
	return h
}

// Add returns a handle to the encrypted sum of a and b.
func (c *Coprocessor) Add(a, b Handle) (Handle, error) {
	ea, eb, err := c.pair(a, b, kindUint64)
	if err != nil {
		return Handle{}, err
	}
	sum := c.key.AddCipher(ea.cipher, eb.cipher)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(sum, kindUint64, false), nil
}

// Sub returns a handle to the encrypted difference a − b. The caller is
// responsible for gating on Gte first; an underflow wraps in the plaintext
// group and will fail range checks on decryption.
func (c *Coprocessor) Sub(a, b Handle) (Handle, error) {
	ea, eb, err := c.pair(a, b, kindUint64)
	if err != nil {
		return Handle{}, err
	}
	diff, err := c.key.SubCipher(ea.cipher, eb.cipher)
	if err != nil {
		return Handle{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(diff, kindUint64, false), nil
}

// Mul returns a handle to the encrypted product, computed oracle-assisted
// with uint64 wraparound semantics.
func (c *Coprocessor) Mul(a, b Handle) (Handle, error) {
	va, vb, err := c.pairValues(a, b)
	if err != nil {
		return Handle{}, err
	}
	return c.reencrypt(va * vb)
}

// Div returns a handle to the encrypted quotient a / b, computed
// oracle-assisted. A zero divisor fails with ErrDivisionByZero.
func (c *Coprocessor) Div(a, b Handle) (Handle, error) {
	va, vb, err := c.pairValues(a, b)
	if err != nil {
		return Handle{}, err
	}
	if vb == 0 {
		return Handle{}, ErrDivisionByZero
	}
	return c.reencrypt(va / vb)
}

// Eq returns a boolean handle encrypting a == b.
func (c *Coprocessor) Eq(a, b Handle) (Handle, error) {
	va, vb, err := c.pairValues(a, b)
	if err != nil {
		return Handle{}, err
	}
	return c.encryptBool(va == vb)
}

// Gte returns a boolean handle encrypting a >= b.
func (c *Coprocessor) Gte(a, b Handle) (Handle, error) {
	va, vb, err := c.pairValues(a, b)
	if err != nil {
		return Handle{}, err
	}
	return c.encryptBool(va >= vb)
}

// Allow grants the principal the right to request decryption of h.
// Grants are additive; there is no revocation.
func (c *Coprocessor) Allow(h Handle, principal common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[h]
	if !ok {
		return ErrUnknownHandle
	}
	e.acl[principal] = struct{}{}
	return nil
}

// AllowSelf grants the contract identity, keeping the handle computable.
func (c *Coprocessor) AllowSelf(h Handle) error {
	return c.Allow(h, c.contract)
}

// IsAllowed reports whether the principal may request decryption of h.
// Trivially encrypted constants are public.
func (c *Coprocessor) IsAllowed(h Handle, principal common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[h]
	if !ok {
		return false
	}
	if e.trivial {
		return true
	}
	_, ok = e.acl[principal]
	return ok
}

// RevealBool discloses the single boolean behind a comparison handle for use
// in a require-style gate. Only the contract identity's grant authorizes it,
// and only boolean handles can be revealed this way.
func (c *Coprocessor) RevealBool(h Handle) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[h]
	c.mu.RUnlock()
	if !ok {
		return false, ErrUnknownHandle
	}
	if e.kind != kindBool {
		return false, ErrKindMismatch
	}
	if _, ok := e.acl[c.contract]; !ok {
		return false, ErrNotAllowed
	}
	v, err := c.decrypt64(e)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Decrypt64 decrypts h on behalf of a principal holding a grant. This is the
// off-chain reencryption path: the transport-level authorization check is the
// caller's concern, the grant check is ours.
func (c *Coprocessor) Decrypt64(h Handle, principal common.Address) (uint64, error) {
	c.mu.RLock()
	e, ok := c.entries[h]
	c.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownHandle
	}
	if !e.trivial {
		if _, granted := e.acl[principal]; !granted {
			return 0, ErrNotAllowed
		}
	}
	return c.decrypt64(e)
}

// pair fetches two entries of the expected kind.
func (c *Coprocessor) pair(a, b Handle, k kind) (*entry, *entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ea, ok := c.entries[a]
	if !ok {
		return nil, nil, ErrUnknownHandle
	}
	eb, ok := c.entries[b]
	if !ok {
		return nil, nil, ErrUnknownHandle
	}
	if ea.kind != k || eb.kind != k {
		return nil, nil, ErrKindMismatch
	}
	return ea, eb, nil
}

// pairValues decrypts two integer operands inside the trust boundary.
func (c *Coprocessor) pairValues(a, b Handle) (uint64, uint64, error) {
	ea, eb, err := c.pair(a, b, kindUint64)
	if err != nil {
		return 0, 0, err
	}
	va, err := c.decrypt64(ea)
	if err != nil {
		return 0, 0, err
	}
	vb, err := c.decrypt64(eb)
	if err != nil {
		return 0, 0, err
	}
	return va, vb, nil
}

// decrypt64 decrypts an entry and enforces the 64-bit plaintext domain.
func (c *Coprocessor) decrypt64(e *entry) (uint64, error) {
	m, err := c.key.Decrypt(e.cipher)
	if err != nil {
		return 0, err
	}
	if !m.IsUint64() {
		return 0, ErrValueRange
	}
	return m.Uint64(), nil
}

// reencrypt encrypts an oracle-computed integer result under fresh randomness.
func (c *Coprocessor) reencrypt(v uint64) (Handle, error) {
	ct, err := c.key.EncryptUint64(v)
	if err != nil {
		return Handle{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(ct, kindUint64, false), nil
}

// encryptBool encrypts a comparison outcome as a boolean handle.
func (c *Coprocessor) encryptBool(v bool) (Handle, error) {
	var m uint64
	if v {
		m = 1
	}
	ct, err := c.key.EncryptUint64(m)
	if err != nil {
		return Handle{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(ct, kindBool, false), nil
}
