// state.go - Ledger state export and import for persistence.
//
// The exported state references encrypted values by handle only; restoring a
// ledger requires restoring its coprocessor first, so every referenced handle
// resolves again.

package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"cipherledger/internal/fhe"
)

// State is the full ledger state in exportable form. Addresses are hex keys
// so the maps survive JSON round-trips.
type State struct {
	Owner      string                           `json:"owner"`
	Balances   map[string]fhe.Handle            `json:"balances"`
	Allowances map[string]map[string]fhe.Handle `json:"allowances"`
	Logs       map[string][]EnergyLogEntry      `json:"logs"`
	Events     []Event                          `json:"events"`
}

// Snapshot exports the ledger state.
func (l *Ledger) Snapshot() *State {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := &State{
		Owner:      l.owner.Hex(),
		Balances:   make(map[string]fhe.Handle, len(l.balances)),
		Allowances: make(map[string]map[string]fhe.Handle, len(l.allowances)),
		Logs:       make(map[string][]EnergyLogEntry, len(l.logs)),
		Events:     make([]Event, len(l.feed.events)),
	}
	for a, h := range l.balances {
		st.Balances[a.Hex()] = h
	}
	for owner, m := range l.allowances {
		inner := make(map[string]fhe.Handle, len(m))
		for spender, h := range m {
			inner[spender.Hex()] = h
		}
		st.Allowances[owner.Hex()] = inner
	}
	for a, entries := range l.logs {
		cp := make([]EnergyLogEntry, len(entries))
		copy(cp, entries)
		st.Logs[a.Hex()] = cp
	}
	copy(st.Events, l.feed.events)
	return st
}

// RestoreLedger rebuilds a ledger from an exported state on a restored
// backend. The event index is rebuilt from the feed rather than persisted.
func RestoreLedger(backend Backend, st *State, opts ...Option) *Ledger {
	l := &Ledger{
		owner:      common.HexToAddress(st.Owner),
		backend:    backend,
		balances:   make(map[common.Address]fhe.Handle, len(st.Balances)),
		allowances: make(map[common.Address]map[common.Address]fhe.Handle, len(st.Allowances)),
		logs:       make(map[common.Address][]EnergyLogEntry, len(st.Logs)),
		zero:       backend.TrivialEncrypt(0),
		posOne:     backend.TrivialEncrypt(1),
		feed:       newEventFeed(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	for a, h := range st.Balances {
		l.balances[common.HexToAddress(a)] = h
	}
	for owner, m := range st.Allowances {
		inner := make(map[common.Address]fhe.Handle, len(m))
		for spender, h := range m {
			inner[common.HexToAddress(spender)] = h
		}
		l.allowances[common.HexToAddress(owner)] = inner
	}
	for a, entries := range st.Logs {
		cp := make([]EnergyLogEntry, len(entries))
		copy(cp, entries)
		l.logs[common.HexToAddress(a)] = cp
	}
	for _, ev := range st.Events {
		idx := len(l.feed.events)
		l.feed.events = append(l.feed.events, ev)
		if ev.From != (common.Address{}) {
			l.feed.byAccount[ev.From] = append(l.feed.byAccount[ev.From], idx)
		}
		if ev.To != ev.From {
			l.feed.byAccount[ev.To] = append(l.feed.byAccount[ev.To], idx)
		}
	}
	return l
}
