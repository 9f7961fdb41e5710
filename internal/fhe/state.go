// state.go - Coprocessor state export and import for persistence.
//
// The exported state contains secret key material: it must only ever be
// written to storage inside the coprocessor's trust boundary.

package fhe

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EntryState is one handle-table entry in exportable form.
type EntryState struct {
	Handle  string   `json:"handle"`
	Cipher  string   `json:"cipher"`
	Kind    byte     `json:"kind"`
	Trivial bool     `json:"trivial"`
	ACL     []string `json:"acl"`
}

// State is the full coprocessor state in exportable form.
type State struct {
	Contract string       `json:"contract"`
	N        string       `json:"n"`
	Lambda   string       `json:"lambda"`
	Mu       string       `json:"mu"`
	Entries  []EntryState `json:"entries"`
}

// Snapshot exports the coprocessor state, key material included.
func (c *Coprocessor) Snapshot() *State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := &State{
		Contract: c.contract.Hex(),
		N:        c.key.N.Text(16),
		Lambda:   c.key.Lambda.Text(16),
		Mu:       c.key.Mu.Text(16),
		Entries:  make([]EntryState, 0, len(c.entries)),
	}
	for h, e := range c.entries {
		es := EntryState{
			Handle:  h.Hex(),
			Cipher:  e.cipher.Text(16),
			Kind:    byte(e.kind),
			Trivial: e.trivial,
			ACL:     make([]string, 0, len(e.acl)),
		}
		for p := range e.acl {
			es.ACL = append(es.ACL, p.Hex())
		}
		st.Entries = append(st.Entries, es)
	}
	return st
}

// RestoreCoprocessor rebuilds a coprocessor from an exported state.
func RestoreCoprocessor(st *State) (*Coprocessor, error) {
	n, ok := new(big.Int).SetString(st.N, 16)
	if !ok {
		return nil, errors.New("fhe: malformed modulus in state")
	}
	lambda, ok := new(big.Int).SetString(st.Lambda, 16)
	if !ok {
		return nil, errors.New("fhe: malformed lambda in state")
	}
	mu, ok := new(big.Int).SetString(st.Mu, 16)
	if !ok {
		return nil, errors.New("fhe: malformed mu in state")
	}
	c := &Coprocessor{
		contract: common.HexToAddress(st.Contract),
		key: &PrivateKey{
			PublicKey: PublicKey{N: n, N2: new(big.Int).Mul(n, n)},
			Lambda:    lambda,
			Mu:        mu,
		},
		entries: make(map[Handle]*entry, len(st.Entries)),
	}
	for _, es := range st.Entries {
		ct, ok := new(big.Int).SetString(es.Cipher, 16)
		if !ok {
			return nil, errors.New("fhe: malformed ciphertext in state")
		}
		e := &entry{
			cipher:  ct,
			kind:    kind(es.Kind),
			trivial: es.Trivial,
			acl:     make(map[common.Address]struct{}, len(es.ACL)),
		}
		for _, p := range es.ACL {
			e.acl[common.HexToAddress(p)] = struct{}{}
		}
		c.entries[HandleFromHex(es.Handle)] = e
	}
	return c, nil
}
