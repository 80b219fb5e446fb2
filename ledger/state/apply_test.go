package state

import (
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"testing"

	"github.com/slotledger/slotledger/ledger"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func newKey(t *testing.T, seed int64) (ed25519.PublicKey, string) {
	pubKey, _, err := ed25519.GenerateKey(rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return pubKey, ledger.AddressFromPublicKey(pubKey)
}

func makeTransfer(senderPub ed25519.PublicKey, recipient string, amount, fee ledger.Amount) *ledger.Transaction {
	tx := &ledger.Transaction{
		Type:            ledger.TxTypeTransfer,
		SenderID:        ledger.AddressFromPublicKey(senderPub),
		SenderPublicKey: senderPub,
		RecipientID:     recipient,
		Amount:          amount,
		Fee:             fee,
	}
	tx.ID = ledger.TransactionIDOf(tx)
	return tx
}

// seedAccount credits an address out of thin air, the way genesis does
func seedAccount(t *testing.T, store *AccountStore, addr string, balance ledger.Amount) {
	tx := &ledger.Transaction{
		Type:        ledger.TxTypeTransfer,
		SenderID:    "__origin__",
		RecipientID: addr,
		Amount:      balance,
	}
	tx.ID = ledger.TransactionIDOf(tx)
	require.NoError(t, applyTransfer(store, tx, false))
}

func TestApplyTransfer(t *testing.T) {
	t.Run("exact debit and credit", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.MustAmountFromString("9999999807716836"))

		tx := makeTransfer(senderPub, recipientAddr,
			ledger.MustAmountFromString("950525433"), ledger.MustAmountFromString("10000000"))
		require.NoError(t, ApplyTransfer(store, tx))

		require.EqualValues(t, "9999998847191403", store.Balance(senderAddr).String())
		require.EqualValues(t, "950525433", store.Balance(recipientAddr).String())
	})
	t.Run("implicit recipient creation", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(1000))
		require.False(t, store.Has(recipientAddr))

		tx := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(500), ledger.NewAmount(10))
		require.NoError(t, ApplyTransfer(store, tx))

		acc, ok := store.Get(recipientAddr)
		require.True(t, ok)
		require.EqualValues(t, tx.ID, acc.FirstTxID)
		require.Empty(t, acc.PublicKey)
		require.Empty(t, acc.SecondPublicKey)
		require.True(t, acc.IsVirgin())
	})
	t.Run("public key bound once", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(10000))

		acc, _ := store.Get(senderAddr)
		require.True(t, acc.IsVirgin())

		tx1 := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(100), ledger.NewAmount(1))
		require.NoError(t, ApplyTransfer(store, tx1))

		acc, _ = store.Get(senderAddr)
		require.EqualValues(t, []byte(senderPub), []byte(acc.PublicKey))
		firstTxID := acc.FirstTxID

		tx2 := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(200), ledger.NewAmount(1))
		require.NoError(t, ApplyTransfer(store, tx2))
		tx3 := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(300), ledger.NewAmount(1))
		require.NoError(t, ApplyTransfer(store, tx3))

		acc, _ = store.Get(senderAddr)
		require.EqualValues(t, []byte(senderPub), []byte(acc.PublicKey))
		require.EqualValues(t, firstTxID, acc.FirstTxID)
	})
	t.Run("absent sender created on first send", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 3)
		_, recipientAddr := newKey(t, 4)

		store := NewAccountStore()
		tx := makeTransfer(senderPub, recipientAddr, ledger.AmountZero, ledger.AmountZero)
		require.NoError(t, ApplyTransfer(store, tx))

		acc, ok := store.Get(senderAddr)
		require.True(t, ok)
		require.True(t, acc.Balance.IsZero())
		require.EqualValues(t, tx.ID, acc.FirstTxID)
		require.EqualValues(t, []byte(senderPub), []byte(acc.PublicKey))
	})
	t.Run("insufficient funds, no partial application", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(100))

		tx := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(100), ledger.NewAmount(1))
		err := ApplyTransfer(store, tx)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		// nothing moved, nothing bound, recipient not created
		require.EqualValues(t, "100", store.Balance(senderAddr).String())
		require.False(t, store.Has(recipientAddr))
		acc, _ := store.Get(senderAddr)
		require.True(t, acc.IsVirgin())
	})
	t.Run("negative amount rejected", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(1000))

		tx := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(-5), ledger.AmountZero)
		require.ErrorIs(t, ApplyTransfer(store, tx), ledger.ErrInvalidTransaction)

		tx = makeTransfer(senderPub, recipientAddr, ledger.NewAmount(5), ledger.NewAmount(-1))
		require.ErrorIs(t, ApplyTransfer(store, tx), ledger.ErrInvalidTransaction)

		require.EqualValues(t, "1000", store.Balance(senderAddr).String())
	})
	t.Run("self transfer burns only the fee", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(1000))

		tx := makeTransfer(senderPub, senderAddr, ledger.NewAmount(600), ledger.NewAmount(7))
		require.NoError(t, ApplyTransfer(store, tx))
		require.EqualValues(t, "993", store.Balance(senderAddr).String())
	})
	t.Run("recipient first tx id stable", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(10000))

		tx1 := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(100), ledger.NewAmount(1))
		require.NoError(t, ApplyTransfer(store, tx1))
		tx2 := makeTransfer(senderPub, recipientAddr, ledger.NewAmount(200), ledger.NewAmount(1))
		require.NoError(t, ApplyTransfer(store, tx2))

		acc, _ := store.Get(recipientAddr)
		require.EqualValues(t, tx1.ID, acc.FirstTxID)
		require.EqualValues(t, "300", acc.Balance.String())
	})
}

func TestApplyBatch(t *testing.T) {
	t.Run("running state within batch", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(100))

		// second transfer only covered by the balance remaining after the
		// first one; a pre-batch snapshot check would pass both spends of 80
		txs := []*ledger.Transaction{
			makeTransfer(senderPub, recipientAddr, ledger.NewAmount(80), ledger.AmountZero),
			makeTransfer(senderPub, recipientAddr, ledger.NewAmount(80), ledger.AmountZero),
		}
		applied, err := ApplyBatch(store, txs)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		require.Len(t, applied, 1)
		require.EqualValues(t, txs[0].ID, applied[0].ID)
		require.EqualValues(t, "20", store.Balance(senderAddr).String())
		require.EqualValues(t, "80", store.Balance(recipientAddr).String())
	})
	t.Run("failure skips only that transaction", func(t *testing.T) {
		senderPub, senderAddr := newKey(t, 1)
		_, recipientAddr := newKey(t, 2)

		store := NewAccountStore()
		seedAccount(t, store, senderAddr, ledger.NewAmount(100))

		txs := []*ledger.Transaction{
			makeTransfer(senderPub, recipientAddr, ledger.NewAmount(30), ledger.AmountZero),
			makeTransfer(senderPub, recipientAddr, ledger.NewAmount(1000), ledger.AmountZero), // fails
			makeTransfer(senderPub, recipientAddr, ledger.NewAmount(30), ledger.AmountZero),
		}
		applied, err := ApplyBatch(store, txs)
		require.Error(t, err)
		require.Len(t, multierr.Errors(err), 1)
		require.Len(t, applied, 2)
		require.EqualValues(t, "40", store.Balance(senderAddr).String())
		require.EqualValues(t, "60", store.Balance(recipientAddr).String())
	})
	t.Run("order determinism", func(t *testing.T) {
		store1 := NewAccountStore()
		store2 := NewAccountStore()

		senderPub, senderAddr := newKey(t, 1)
		seedAccount(t, store1, senderAddr, ledger.NewAmount(1000000))
		seedAccount(t, store2, senderAddr, ledger.NewAmount(1000000))

		txs := make([]*ledger.Transaction, 20)
		for i := range txs {
			_, recipient := newKey(t, int64(100+i))
			txs[i] = makeTransfer(senderPub, recipient, ledger.NewAmount(int64(i)*13), ledger.NewAmount(1))
		}

		_, err := ApplyBatch(store1, txs)
		require.NoError(t, err)
		for _, tx := range txs {
			require.NoError(t, ApplyTransfer(store2, tx))
		}

		require.EqualValues(t, store1.Addresses(), store2.Addresses())
		for _, addr := range store1.Addresses() {
			acc1, _ := store1.Get(addr)
			acc2, _ := store2.Get(addr)
			require.EqualValues(t, acc1.Balance.String(), acc2.Balance.String(), fmt.Sprintf("address %s", addr))
			require.EqualValues(t, acc1.FirstTxID, acc2.FirstTxID)
		}
	})
}
