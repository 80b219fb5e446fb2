package ledger

import "crypto/ed25519"

// Account is one per-address ledger record. All mutations go through the
// state machine in ledger/state; nothing else writes these fields.
//
// PublicKey is bound exactly once, on the first transaction where the address
// acts as sender. FirstTxID is set once, on the account's first appearance as
// sender or recipient, whichever comes first. SecondPublicKey is set by the
// dedicated registration transaction type and defaults to absent.
type Account struct {
	Address         string
	Balance         Amount
	PublicKey       ed25519.PublicKey
	FirstTxID       string
	SecondPublicKey ed25519.PublicKey
}

func NewAccount(address string) *Account {
	return &Account{Address: address}
}

// Clone returns a deep copy. The state machine stages mutations on clones so
// a failed apply never leaves a half-written record behind
func (a *Account) Clone() *Account {
	ret := &Account{
		Address:   a.Address,
		Balance:   a.Balance,
		FirstTxID: a.FirstTxID,
	}
	if len(a.PublicKey) > 0 {
		ret.PublicKey = append(ed25519.PublicKey(nil), a.PublicKey...)
	}
	if len(a.SecondPublicKey) > 0 {
		ret.SecondPublicKey = append(ed25519.PublicKey(nil), a.SecondPublicKey...)
	}
	return ret
}

// IsVirgin tells if the account has never sent a transaction
func (a *Account) IsVirgin() bool {
	return len(a.PublicKey) == 0
}
