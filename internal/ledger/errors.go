package ledger

import "errors"

var (
	// ErrUnauthorized is returned when a non-owner calls a privileged
	// operation.
	ErrUnauthorized = errors.New("ledger: caller is not the owner")
	// ErrInvalidRecipient is returned when the recipient is the zero address.
	ErrInvalidRecipient = errors.New("ledger: recipient is the zero address")
	// ErrIndexOutOfBounds is returned for reads past the end of an account's
	// energy log.
	ErrIndexOutOfBounds = errors.New("ledger: log index out of bounds")
	// ErrInsufficientBalance is returned when the revealed balance check
	// fails.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInsufficientAllowance is returned when the revealed allowance check
	// fails.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	// ErrNonPositiveAmount is returned when the revealed positivity check
	// fails.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
)
