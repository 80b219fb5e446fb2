package state

import (
	"fmt"

	"github.com/slotledger/slotledger/ledger"
)

// InitFromGenesis seeds an empty store by replaying the genesis transaction
// list in order. The genesis source account is allowed to go negative: it is
// the origin of the total supply and has nothing to be debited from. Replay
// is strict otherwise and aborts on the first malformed transaction.
func InitFromGenesis(store *AccountStore, txs []*ledger.Transaction) error {
	if store.Len() != 0 {
		return fmt.Errorf("genesis replay requires an empty account store, got %d accounts", store.Len())
	}
	for i, tx := range txs {
		if err := applyTransfer(store, tx, false); err != nil {
			return fmt.Errorf("genesis transaction %d (%s): %w", i, tx.ID, err)
		}
	}
	return nil
}
