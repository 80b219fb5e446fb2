package ledger

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/slotledger/slotledger/util"
	"golang.org/x/crypto/blake2b"
)

// Block is the unit of commitment produced by the forger for one slot.
// Assembly and chain append are the BlockAssembler's business; the core only
// needs the identity of the block for round seeding.
type Block struct {
	ID           string
	Slot         int64
	Leader       string
	PreviousID   string
	Transactions []*Transaction
}

// BlockIDOf hashes slot, leader, previous id and the ordered transaction ids
func BlockIDOf(b *Block) string {
	var slot [8]byte
	binary.BigEndian.PutUint64(slot[:], uint64(b.Slot))
	data := util.Concat(slot[:], []byte(b.Leader), []byte(b.PreviousID))
	for _, tx := range b.Transactions {
		data = util.Concat(data, []byte(tx.ID))
	}
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SeedBytes returns the round-randomization seed contributed by this block
func (b *Block) SeedBytes() []byte {
	h := blake2b.Sum256([]byte(b.ID))
	return h[:]
}
