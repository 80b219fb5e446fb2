package ledger

import "errors"

// Ledger and forging errors. Callers match with errors.Is.
var (
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrSlotAlreadyForged    = errors.New("slot already forged")
	ErrNotEligibleForger    = errors.New("not eligible to forge this slot")
	ErrInvalidSlot          = errors.New("invalid slot")
	ErrPoolFull             = errors.New("transaction pool is full")
	ErrUnknownLeader        = errors.New("leader not in active set")
)
