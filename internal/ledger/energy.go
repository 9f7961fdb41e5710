// energy.go - Append-only per-account log of encrypted meter readings.
//
// A log entry carries one clear-text date and three encrypted readings
// (electricity, gas, water). Entries are never updated or deleted; the index
// of an entry is stable for the lifetime of the ledger.

package ledger

import (
	"github.com/ethereum/go-ethereum/common"

	"cipherledger/internal/fhe"
)

// EnergyLogEntry is one committed meter reading. Date is intentionally
// clear text; the three readings are encrypted handles.
type EnergyLogEntry struct {
	Date        string     `json:"date"`
	Electricity fhe.Handle `json:"electricity"`
	Gas         fhe.Handle `json:"gas"`
	Water       fhe.Handle `json:"water"`
}

// AddEnergyLog appends a reading to the caller's own log. The three
// ciphertexts share one admission proof; admission is all-or-nothing, so a
// bad proof appends nothing. Each admitted handle is granted to the caller.
func (l *Ledger) AddEnergyLog(caller common.Address, date string, electricityCt, gasCt, waterCt, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	handles, err := l.backend.VerifyInputs([][]byte{electricityCt, gasCt, waterCt}, proof, caller)
	if err != nil {
		return err
	}
	for _, h := range handles {
		if err := l.grant(h, caller); err != nil {
			return err
		}
	}
	l.logs[caller] = append(l.logs[caller], EnergyLogEntry{
		Date:        date,
		Electricity: handles[0],
		Gas:         handles[1],
		Water:       handles[2],
	})
	l.log.Info().Str("account", caller.Hex()).Str("date", date).
		Int("index", len(l.logs[caller])-1).Msg("energy log appended")
	return nil
}

// GetLogCount returns the number of entries in the account's log. Zero for
// accounts that never logged.
func (l *Ledger) GetLogCount(account common.Address) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs[account])
}

// GetLog returns the full entry at index.
func (l *Ledger) GetLog(account common.Address, index int) (EnergyLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logAt(account, index)
}

// GetDate returns the clear-text date of the entry at index.
func (l *Ledger) GetDate(account common.Address, index int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.logAt(account, index)
	if err != nil {
		return "", err
	}
	return e.Date, nil
}

// GetElectricity returns the electricity handle of the entry at index.
func (l *Ledger) GetElectricity(account common.Address, index int) (fhe.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.logAt(account, index)
	if err != nil {
		return fhe.Handle{}, err
	}
	return e.Electricity, nil
}

// GetGas returns the gas handle of the entry at index.
func (l *Ledger) GetGas(account common.Address, index int) (fhe.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.logAt(account, index)
	if err != nil {
		return fhe.Handle{}, err
	}
	return e.Gas, nil
}

// GetWater returns the water handle of the entry at index.
func (l *Ledger) GetWater(account common.Address, index int) (fhe.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.logAt(account, index)
	if err != nil {
		return fhe.Handle{}, err
	}
	return e.Water, nil
}

// logAt bounds-checks and fetches. Index 0 on an empty log is out of bounds
// like any other past-the-end index. Caller holds l.mu.
func (l *Ledger) logAt(account common.Address, index int) (EnergyLogEntry, error) {
	entries := l.logs[account]
	if index < 0 || index >= len(entries) {
		return EnergyLogEntry{}, ErrIndexOutOfBounds
	}
	return entries[index], nil
}
