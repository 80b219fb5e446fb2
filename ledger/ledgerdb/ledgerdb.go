// Package ledgerdb is a deterministic in-memory ledger with genesis supply
// and a faucet-style transfer helper. It wires the account store, the
// transaction pool and the forging pipeline together the way a full node
// would, and is the harness used by integration tests.
package ledgerdb

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/slotledger/slotledger/forging"
	"github.com/slotledger/slotledger/ledger"
	"github.com/slotledger/slotledger/ledger/state"
	"github.com/slotledger/slotledger/pool"
	"github.com/slotledger/slotledger/util/testutil"
	"go.uber.org/zap"
)

const (
	// for determinism
	originSeed       = "8ec47313c15c3a4443c41619735109b56bc818f4a6b71d6a1f186ec96d15f28f"
	genesisSeed      = "14117899305d99fb4775de9223ce9886cfaa3195da1e40c5db47c61266f04dd2"
	supplyForTesting = "10000000000000000"
	delegatesForTest = 5
	slotDurationSec  = int64(10)
)

// harnessEpoch anchors slot 0 at process start so that slot deadlines lie in
// the future while tests forge. One value per process keeps instances
// created in the same test run identical.
var harnessEpoch = time.Now().Unix()

var (
	_ ledger.BlockAssembler = &LedgerDB{}
	_ ledger.Persistence    = &LedgerDB{}
)

type LedgerDB struct {
	mutex sync.Mutex

	store *state.AccountStore
	seq   *state.BalancesSequence
	pool  *pool.TransactionPool
	clock forging.SlotClock
	sched *forging.Scheduler
	forg  *forging.Forger
	log   *zap.SugaredLogger

	chain  []*ledger.Block
	lastID string

	genesisPrivateKey ed25519.PrivateKey
	genesisPublicKey  ed25519.PublicKey
	genesisAddress    string
	originAddress     string
	delegates         []string
	supply            ledger.Amount
}

// New creates a ledger seeded by replaying the genesis transaction through
// the state machine. Keys are derived from fixed seeds, so two instances are
// bit-identical.
func New(trace ...bool) *LedgerDB {
	originBin, err := hex.DecodeString(originSeed)
	if err != nil {
		panic(err)
	}
	genesisBin, err := hex.DecodeString(genesisSeed)
	if err != nil {
		panic(err)
	}
	originPrivKey := ed25519.NewKeyFromSeed(originBin)
	genesisPrivKey := ed25519.NewKeyFromSeed(genesisBin)
	genesisPubKey := genesisPrivKey.Public().(ed25519.PublicKey)

	ret := &LedgerDB{
		store:             state.NewAccountStore(),
		pool:              pool.New(),
		clock:             forging.NewSlotClock(harnessEpoch, slotDurationSec),
		log:               testutil.NewSimpleLogger(len(trace) > 0 && trace[0]),
		genesisPrivateKey: genesisPrivKey,
		genesisPublicKey:  genesisPubKey,
		genesisAddress:    ledger.AddressFromPublicKey(genesisPubKey),
		originAddress:     ledger.AddressFromPublicKey(originPrivKey.Public().(ed25519.PublicKey)),
		supply:            ledger.MustAmountFromString(supplyForTesting),
		delegates:         deterministicDelegates(delegatesForTest),
	}

	genesisTxs, err := ret.LoadGenesisTransactions()
	if err != nil {
		panic(err)
	}
	if err = state.InitFromGenesis(ret.store, genesisTxs); err != nil {
		panic(err)
	}
	ret.seq = state.NewBalancesSequence(ret.store, ret.log)

	ret.sched, err = forging.NewScheduler(ret.delegates, []byte("genesis"))
	if err != nil {
		panic(err)
	}
	ret.forg = forging.NewForger(ret.clock, ret.sched, ret.pool, ret, forging.Params{}, ret.log)
	return ret
}

func deterministicDelegates(n int) []string {
	ret := make([]string, n)
	for i := 0; i < n; i++ {
		seed := make([]byte, ed25519.SeedSize)
		copy(seed, fmt.Sprintf("delegate-%d", i))
		priv := ed25519.NewKeyFromSeed(seed)
		ret[i] = ledger.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))
	}
	return ret
}

func (u *LedgerDB) Supply() ledger.Amount {
	return u.supply
}

func (u *LedgerDB) GenesisKeys() (ed25519.PrivateKey, ed25519.PublicKey) {
	return u.genesisPrivateKey, u.genesisPublicKey
}

func (u *LedgerDB) GenesisAddress() string {
	return u.genesisAddress
}

func (u *LedgerDB) Delegates() []string {
	return append([]string(nil), u.delegates...)
}

func (u *LedgerDB) Pool() *pool.TransactionPool {
	return u.pool
}

func (u *LedgerDB) Scheduler() *forging.Scheduler {
	return u.sched
}

func (u *LedgerDB) Clock() forging.SlotClock {
	return u.clock
}

// LoadAccounts implements ledger.Persistence
func (u *LedgerDB) LoadAccounts() ([]*ledger.Account, error) {
	ret := make([]*ledger.Account, 0, u.store.Len())
	for _, addr := range u.store.Addresses() {
		acc, _ := u.store.Get(addr)
		ret = append(ret, acc)
	}
	return ret, nil
}

// LoadGenesisTransactions implements ledger.Persistence. The single genesis
// transfer moves the whole supply from the origin address (which ends
// negative, it is the source of all tokens) to the genesis account.
func (u *LedgerDB) LoadGenesisTransactions() ([]*ledger.Transaction, error) {
	tx := &ledger.Transaction{
		Type:        ledger.TxTypeTransfer,
		SenderID:    u.originAddress,
		RecipientID: u.genesisAddress,
		Amount:      u.supply,
		Fee:         ledger.AmountZero,
		Timestamp:   harnessEpoch,
	}
	tx.ID = ledger.TransactionIDOf(tx)
	return []*ledger.Transaction{tx}, nil
}

// Assemble implements ledger.BlockAssembler
func (u *LedgerDB) Assemble(leader string, slot int64, batch []*ledger.Transaction) (*ledger.Block, error) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	blk := &ledger.Block{
		Slot:         slot,
		Leader:       leader,
		PreviousID:   u.lastID,
		Transactions: batch,
	}
	blk.ID = ledger.BlockIDOf(blk)
	return blk, nil
}

// Commit implements ledger.BlockAssembler: the batch goes through the
// balances sequence and the block is appended to the chain. Individual
// transaction failures do not fail the block, they are logged and dropped.
func (u *LedgerDB) Commit(blk *ledger.Block) error {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if len(u.chain) > 0 && u.chain[len(u.chain)-1].Slot >= blk.Slot {
		return fmt.Errorf("%w: slot %d", ledger.ErrSlotAlreadyForged, blk.Slot)
	}
	applied, err := u.seq.SubmitBatch(context.Background(), blk.Transactions)
	if err != nil {
		u.log.Warnf("block %s: %d transactions rejected: %v", blk.ID, len(blk.Transactions)-len(applied), err)
	}
	u.chain = append(u.chain, blk)
	u.lastID = blk.ID
	return nil
}

func (u *LedgerDB) ChainLength() int {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return len(u.chain)
}

func (u *LedgerDB) BlockAt(i int) *ledger.Block {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return u.chain[i]
}

// Balance reads the balance through the balances sequence
func (u *LedgerDB) Balance(address string) ledger.Amount {
	var ret ledger.Amount
	err := u.seq.Read(context.Background(), func(store *state.AccountStore) {
		ret = store.Balance(address)
	})
	if err != nil {
		panic(err)
	}
	return ret
}

// Account returns a copy of the record, or nil if the address is unknown
func (u *LedgerDB) Account(address string) *ledger.Account {
	var ret *ledger.Account
	err := u.seq.Read(context.Background(), func(store *state.AccountStore) {
		if acc, ok := store.Get(address); ok {
			ret = acc
		}
	})
	if err != nil {
		panic(err)
	}
	return ret
}

// MakeTransfer builds and signs a transfer with the given key
func (u *LedgerDB) MakeTransfer(privKey ed25519.PrivateKey, recipient string, amount, fee ledger.Amount, timestamp int64) *ledger.Transaction {
	pubKey := privKey.Public().(ed25519.PublicKey)
	tx := &ledger.Transaction{
		Type:            ledger.TxTypeTransfer,
		SenderID:        ledger.AddressFromPublicKey(pubKey),
		SenderPublicKey: pubKey,
		RecipientID:     recipient,
		Amount:          amount,
		Fee:             fee,
		Timestamp:       timestamp,
	}
	tx.ID = ledger.TransactionIDOf(tx)
	tx.Signature = ed25519.Sign(privKey, tx.EssenceBytes())
	return tx
}

// Admit verifies the signature and admits the transfer to the pool
func (u *LedgerDB) Admit(tx *ledger.Transaction) error {
	if !ed25519.Verify(tx.SenderPublicKey, tx.EssenceBytes(), tx.Signature) {
		return fmt.Errorf("%w: bad signature in tx %s", ledger.ErrInvalidTransaction, tx.ID)
	}
	return u.pool.Admit(tx)
}

// NextSlot returns the first slot not yet resolved by the forger
func (u *LedgerDB) NextSlot() int64 {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if len(u.chain) == 0 {
		return 0
	}
	return u.chain[len(u.chain)-1].Slot + 1
}

// ForgeNext produces the next block as its assigned leader: the full
// pipeline, pool batch -> scheduler -> assembler -> state machine
func (u *LedgerDB) ForgeNext() (*ledger.Block, error) {
	slot := u.NextSlot()
	leader, err := u.sched.LeaderFor(slot)
	if err != nil {
		return nil, err
	}
	return u.forg.GenerateBlock(context.Background(), slot, leader)
}

// Forger exposes the underlying forging state machine
func (u *LedgerDB) Forger() *forging.Forger {
	return u.forg
}

// Stop terminates the balances sequence worker
func (u *LedgerDB) Stop() {
	u.seq.Stop()
}
