package ledger

// Collaborator interfaces. The core consumes these; implementations live
// outside (transport, persistence) or in ledgerdb for tests.

// TransactionNormalizer canonicalizes a raw transaction and verifies its
// signature before the transaction is allowed anywhere near the pool
type TransactionNormalizer interface {
	Normalize(raw []byte) (*Transaction, error)
}

// Persistence seeds the account store at startup. LoadGenesisTransactions
// returns the genesis list in its canonical order; replaying it through the
// state machine must be deterministic
type Persistence interface {
	LoadAccounts() ([]*Account, error)
	LoadGenesisTransactions() ([]*Transaction, error)
}

// BlockAssembler packages a leader's batch into a signed block and appends it
// to the chain. Commit applies the batch to the account store as a side
// effect, through the ledger state machine
type BlockAssembler interface {
	Assemble(leader string, slot int64, batch []*Transaction) (*Block, error)
	Commit(b *Block) error
}

// AccountReader is the read-only view handed to components that must not
// mutate state
type AccountReader interface {
	Get(address string) (*Account, bool)
}
