// ledger.go - Ledger construction and shared state-machine plumbing.
//
// The Ledger owns three per-account stores (balances, allowances, energy
// logs) plus the event feed. Accounts are implicit: first use creates
// default zero state, there is no registration step.

package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"cipherledger/internal/fhe"
)

// Backend is the encrypted value backend the ledger computes on. Satisfied
// by *fhe.Coprocessor; narrowed to the operations the state machine needs.
type Backend interface {
	VerifyInput(ct, proof []byte, submitter common.Address) (fhe.Handle, error)
	VerifyInputs(cts [][]byte, proof []byte, submitter common.Address) ([]fhe.Handle, error)
	TrivialEncrypt(v uint64) fhe.Handle
	Add(a, b fhe.Handle) (fhe.Handle, error)
	Sub(a, b fhe.Handle) (fhe.Handle, error)
	Gte(a, b fhe.Handle) (fhe.Handle, error)
	RevealBool(h fhe.Handle) (bool, error)
	Allow(h fhe.Handle, principal common.Address) error
	AllowSelf(h fhe.Handle) error
}

// Ledger is the sequential encrypted state machine. One mutex serializes all
// calls; no call observes a partially applied mutation.
type Ledger struct {
	mu      sync.Mutex
	owner   common.Address
	backend Backend

	balances   map[common.Address]fhe.Handle
	allowances map[common.Address]map[common.Address]fhe.Handle
	logs       map[common.Address][]EnergyLogEntry

	// zero and posOne are deterministic trivial constants: the default
	// balance/allowance and the comparison floor for positivity gates.
	zero   fhe.Handle
	posOne fhe.Handle

	feed      *eventFeed
	publisher EventPublisher
	log       zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithPublisher sets the external event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// NewLedger creates an empty ledger. The owner is fixed at construction and
// is the only principal authorized to mint; there is no ownership transfer.
func NewLedger(backend Backend, owner common.Address, opts ...Option) *Ledger {
	l := &Ledger{
		owner:      owner,
		backend:    backend,
		balances:   make(map[common.Address]fhe.Handle),
		allowances: make(map[common.Address]map[common.Address]fhe.Handle),
		logs:       make(map[common.Address][]EnergyLogEntry),
		zero:       backend.TrivialEncrypt(0),
		posOne:     backend.TrivialEncrypt(1),
		feed:       newEventFeed(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Owner returns the privileged minting principal.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// balanceHandle returns the stored balance handle, defaulting to the trivial
// zero for untouched accounts. Caller holds l.mu.
func (l *Ledger) balanceHandle(account common.Address) fhe.Handle {
	if h, ok := l.balances[account]; ok {
		return h
	}
	return l.zero
}

// allowanceHandle returns the stored allowance handle, defaulting to the
// trivial zero. Caller holds l.mu.
func (l *Ledger) allowanceHandle(owner, spender common.Address) fhe.Handle {
	if m, ok := l.allowances[owner]; ok {
		if h, ok := m[spender]; ok {
			return h
		}
	}
	return l.zero
}

// revealGte computes a >= b homomorphically and reveals only the boolean
// outcome. This is the single point where clear text derived from encrypted
// state reaches control flow.
func (l *Ledger) revealGte(a, b fhe.Handle) (bool, error) {
	cmp, err := l.backend.Gte(a, b)
	if err != nil {
		return false, err
	}
	return l.backend.RevealBool(cmp)
}

// grant records the post-mutation access-control invariant for one handle:
// the contract identity plus every semantic owner.
func (l *Ledger) grant(h fhe.Handle, principals ...common.Address) error {
	if err := l.backend.AllowSelf(h); err != nil {
		return err
	}
	for _, p := range principals {
		if err := l.backend.Allow(h, p); err != nil {
			return err
		}
	}
	return nil
}
