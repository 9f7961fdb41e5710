// token.go - Encrypted-balance token operations: mint, transfer, approve,
// transferFrom.
//
// Every debit and its matching credit reuse the same admitted amount handle.
// Substituting a derived handle on one side would break conservation (total
// supply = sum of balances), the safety-critical property of this file.

package ledger

import (
	"github.com/ethereum/go-ethereum/common"

	"cipherledger/internal/fhe"
)

// BalanceOf returns the account's balance handle. Handles are publicly
// retrievable; decryption requires a personal grant.
func (l *Ledger) BalanceOf(account common.Address) fhe.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceHandle(account)
}

// Allowance returns the (owner, spender) allowance handle.
func (l *Ledger) Allowance(owner, spender common.Address) fhe.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowanceHandle(owner, spender)
}

// Mint credits an encrypted amount to an account. Owner only. The amount must
// reveal as positive before any credit is applied.
func (l *Ledger) Mint(caller, to common.Address, amountCt, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrUnauthorized
	}
	amount, err := l.backend.VerifyInput(amountCt, proof, caller)
	if err != nil {
		return err
	}
	positive, err := l.revealGte(amount, l.posOne)
	if err != nil {
		return err
	}
	if !positive {
		return ErrNonPositiveAmount
	}
	credited, err := l.backend.Add(l.balanceHandle(to), amount)
	if err != nil {
		return err
	}
	if err := l.grant(credited, to); err != nil {
		return err
	}
	l.balances[to] = credited
	l.emit(EventTransfer, common.Address{}, to, amount)
	l.log.Info().Str("to", to.Hex()).Str("amount", amount.Hex()).Msg("mint")
	return nil
}

// Transfer moves an encrypted amount from the caller to the recipient.
// Validation order: recipient, positivity reveal, balance reveal; only then
// is the debit/credit pair applied.
func (l *Ledger) Transfer(caller, to common.Address, amountCt, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}
	amount, err := l.backend.VerifyInput(amountCt, proof, caller)
	if err != nil {
		return err
	}
	positive, err := l.revealGte(amount, l.posOne)
	if err != nil {
		return err
	}
	if !positive {
		return ErrNonPositiveAmount
	}
	covered, err := l.revealGte(l.balanceHandle(caller), amount)
	if err != nil {
		return err
	}
	if !covered {
		return ErrInsufficientBalance
	}
	debited, credited, err := l.computeMove(caller, to, amount)
	if err != nil {
		return err
	}
	l.balances[caller] = debited
	l.balances[to] = credited
	l.emit(EventTransfer, caller, to, amount)
	l.log.Info().Str("from", caller.Hex()).Str("to", to.Hex()).
		Str("amount", amount.Hex()).Msg("transfer")
	return nil
}

// Approve overwrites the caller's allowance for the spender with the admitted
// amount handle. Approvals replace, they never accumulate.
func (l *Ledger) Approve(caller, spender common.Address, amountCt, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount, err := l.backend.VerifyInput(amountCt, proof, caller)
	if err != nil {
		return err
	}
	if err := l.grant(amount, caller, spender); err != nil {
		return err
	}
	if l.allowances[caller] == nil {
		l.allowances[caller] = make(map[common.Address]fhe.Handle)
	}
	l.allowances[caller][spender] = amount
	l.emit(EventApproval, caller, spender, amount)
	l.log.Info().Str("owner", caller.Hex()).Str("spender", spender.Hex()).
		Str("amount", amount.Hex()).Msg("approve")
	return nil
}

// TransferFrom moves an encrypted amount from `from` to `to` on the caller's
// allowance. Exactly two booleans are revealed: balance coverage and
// allowance coverage.
func (l *Ledger) TransferFrom(caller, from, to common.Address, amountCt, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}
	amount, err := l.backend.VerifyInput(amountCt, proof, caller)
	if err != nil {
		return err
	}
	covered, err := l.revealGte(l.balanceHandle(from), amount)
	if err != nil {
		return err
	}
	if !covered {
		return ErrInsufficientBalance
	}
	permitted, err := l.revealGte(l.allowanceHandle(from, caller), amount)
	if err != nil {
		return err
	}
	if !permitted {
		return ErrInsufficientAllowance
	}
	remaining, err := l.backend.Sub(l.allowanceHandle(from, caller), amount)
	if err != nil {
		return err
	}
	debited, credited, err := l.computeMove(from, to, amount)
	if err != nil {
		return err
	}
	if err := l.grant(remaining, from, caller); err != nil {
		return err
	}
	l.balances[from] = debited
	l.balances[to] = credited
	if l.allowances[from] == nil {
		l.allowances[from] = make(map[common.Address]fhe.Handle)
	}
	l.allowances[from][caller] = remaining
	l.emit(EventTransfer, from, to, amount)
	l.log.Info().Str("spender", caller.Hex()).Str("from", from.Hex()).
		Str("to", to.Hex()).Str("amount", amount.Hex()).Msg("transferFrom")
	return nil
}

// computeMove derives the debit/credit pair with the same amount handle on
// both sides and issues the balance grants. Nothing is committed here:
// callers write the returned handles only after every fallible call of the
// operation has succeeded, so a failure mutates nothing. Caller holds l.mu
// and has already passed the reveal gates.
func (l *Ledger) computeMove(from, to common.Address, amount fhe.Handle) (debited, credited fhe.Handle, err error) {
	debited, err = l.backend.Sub(l.balanceHandle(from), amount)
	if err != nil {
		return fhe.Handle{}, fhe.Handle{}, err
	}
	creditBase := l.balanceHandle(to)
	if to == from {
		creditBase = debited
	}
	credited, err = l.backend.Add(creditBase, amount)
	if err != nil {
		return fhe.Handle{}, fhe.Handle{}, err
	}
	if err = l.grant(debited, from); err != nil {
		return fhe.Handle{}, fhe.Handle{}, err
	}
	if err = l.grant(credited, to); err != nil {
		return fhe.Handle{}, fhe.Handle{}, err
	}
	return debited, credited, nil
}
