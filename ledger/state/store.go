package state

import (
	"sort"

	"github.com/slotledger/slotledger/ledger"
)

// AccountStore is the keyed mapping address -> account record. It exclusively
// owns all account records; mutation happens only through ApplyTransfer and
// ApplyBatch in this package, and concurrent access only through the
// BalancesSequence worker.
type AccountStore struct {
	accounts map[string]*ledger.Account
}

var _ ledger.AccountReader = &AccountStore{}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*ledger.Account),
	}
}

// Get returns a copy of the record, so callers cannot mutate the store behind
// the state machine's back
func (s *AccountStore) Get(address string) (*ledger.Account, bool) {
	acc, ok := s.accounts[address]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

func (s *AccountStore) Has(address string) bool {
	_, ok := s.accounts[address]
	return ok
}

// Balance returns the balance, zero for a non-existent account
func (s *AccountStore) Balance(address string) ledger.Amount {
	acc, ok := s.accounts[address]
	if !ok {
		return ledger.AmountZero
	}
	return acc.Balance
}

func (s *AccountStore) Len() int {
	return len(s.accounts)
}

// Addresses returns all known addresses, sorted for determinism
func (s *AccountStore) Addresses() []string {
	ret := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		ret = append(ret, addr)
	}
	sort.Strings(ret)
	return ret
}

// Clone deep-copies the whole store. Used by tests to compare replay results
func (s *AccountStore) Clone() *AccountStore {
	ret := NewAccountStore()
	for addr, acc := range s.accounts {
		ret.accounts[addr] = acc.Clone()
	}
	return ret
}

// getOrNil returns the live record, for staging inside the state machine only
func (s *AccountStore) getOrNil(address string) *ledger.Account {
	return s.accounts[address]
}

func (s *AccountStore) put(acc *ledger.Account) {
	s.accounts[acc.Address] = acc
}
