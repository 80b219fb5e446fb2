package ledger

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"

	"github.com/slotledger/slotledger/util"
	"golang.org/x/crypto/blake2b"
)

// Transaction types. Only transfers are processed by the state machine;
// the second-signature registration type is reserved
const (
	TxTypeTransfer        = byte(0)
	TxTypeSecondSignature = byte(1)
)

// Transaction is a signed, normalized transfer. Signature verification happens
// upstream in the TransactionNormalizer; the state machine trusts it
type Transaction struct {
	ID              string
	Type            byte
	SenderID        string
	SenderPublicKey ed25519.PublicKey
	RecipientID     string
	Amount          Amount
	Fee             Amount
	Timestamp       int64
	Signature       []byte
}

// EssenceBytes returns the canonical byte encoding of the fields covered by
// the signature and by the transaction id
func (tx *Transaction) EssenceBytes() []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(tx.Timestamp))
	return util.Concat(
		[]byte{tx.Type},
		[]byte(tx.SenderID),
		tx.SenderPublicKey,
		[]byte(tx.RecipientID),
		[]byte(tx.Amount.String()),
		[]byte(tx.Fee.String()),
		ts[:],
	)
}

// TransactionIDOf derives the id deterministically from the transaction essence
func TransactionIDOf(tx *Transaction) string {
	h := blake2b.Sum256(tx.EssenceBytes())
	return hex.EncodeToString(h[:])
}

// AddressFromPublicKey derives the account address from an ed25519 public key
func AddressFromPublicKey(pubKey ed25519.PublicKey) string {
	h := blake2b.Sum256(pubKey)
	return hex.EncodeToString(h[:20])
}
