package state

import (
	"fmt"

	"github.com/slotledger/slotledger/ledger"
	"go.uber.org/multierr"
)

// The ledger state-transition function. ApplyTransfer mutates sender and
// recipient all-or-nothing: both records are staged on clones and committed
// together, so a rejected transaction leaves the store untouched.

// ApplyTransfer applies a single transfer to the store.
//
// Sender: debited amount+fee; created with zero balance if absent; public key
// and first-tx id bound on the first outgoing transaction and never after.
// Recipient: credited amount; created implicitly with FirstTxID = tx.ID and
// no public key if absent.
func ApplyTransfer(store *AccountStore, tx *ledger.Transaction) error {
	return applyTransfer(store, tx, true)
}

func applyTransfer(store *AccountStore, tx *ledger.Transaction, checkFunds bool) error {
	if tx.Amount.IsNegative() || tx.Fee.IsNegative() {
		return fmt.Errorf("%w: negative amount or fee in tx %s", ledger.ErrInvalidTransaction, tx.ID)
	}

	// stage sender
	var sender *ledger.Account
	if existing := store.getOrNil(tx.SenderID); existing != nil {
		sender = existing.Clone()
	} else {
		sender = ledger.NewAccount(tx.SenderID)
	}
	if len(sender.PublicKey) == 0 {
		// one-time binding on the first outgoing transaction
		sender.PublicKey = tx.SenderPublicKey
		if sender.FirstTxID == "" {
			sender.FirstTxID = tx.ID
		}
	}
	debit := tx.Amount.Add(tx.Fee)
	sender.Balance = sender.Balance.Sub(debit)
	if checkFunds && sender.Balance.IsNegative() {
		return fmt.Errorf("%w: sender %s is short %s for tx %s",
			ledger.ErrInsufficientFunds, tx.SenderID, sender.Balance.String(), tx.ID)
	}

	// stage recipient
	var recipient *ledger.Account
	if tx.RecipientID != "" {
		if tx.RecipientID == tx.SenderID {
			recipient = sender
			recipient.Balance = recipient.Balance.Add(tx.Amount)
		} else if existing := store.getOrNil(tx.RecipientID); existing != nil {
			recipient = existing.Clone()
			recipient.Balance = recipient.Balance.Add(tx.Amount)
		} else {
			recipient = ledger.NewAccount(tx.RecipientID)
			recipient.Balance = tx.Amount
			recipient.FirstTxID = tx.ID
		}
	}

	// commit both staged records atomically
	store.put(sender)
	if recipient != nil && recipient != sender {
		store.put(recipient)
	}
	return nil
}

// ApplyBatch applies transactions strictly in batch order against the running
// state, so later transactions see earlier effects. A failed transaction is
// skipped and the batch continues; all failures are aggregated and surfaced
// to the caller together with the list of applied transactions.
func ApplyBatch(store *AccountStore, txs []*ledger.Transaction) ([]*ledger.Transaction, error) {
	applied := make([]*ledger.Transaction, 0, len(txs))
	var err error
	for _, tx := range txs {
		if applyErr := ApplyTransfer(store, tx); applyErr != nil {
			err = multierr.Append(err, applyErr)
			continue
		}
		applied = append(applied, tx)
	}
	return applied, err
}
