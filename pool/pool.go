// Package pool implements the staging area for admitted-but-unconfirmed
// transactions. Admission is a single sequential gate: the pool mutex orders
// all admissions and batch draws, so a forging round never observes a
// half-admitted transaction.
package pool

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/slotledger/slotledger/ledger"
)

const DefaultCapacity = 4096

type TransactionPool struct {
	mutex    sync.Mutex
	d        *deque.Deque[*ledger.Transaction]
	pending  map[string]struct{}
	consumed map[string]struct{}
	capacity int
}

func New(capacity ...int) *TransactionPool {
	c := DefaultCapacity
	if len(capacity) > 0 {
		c = capacity[0]
	}
	return &TransactionPool{
		d:        new(deque.Deque[*ledger.Transaction]),
		pending:  make(map[string]struct{}),
		consumed: make(map[string]struct{}),
		capacity: c,
	}
}

// Admit enqueues the transaction preserving arrival order. A transaction id
// already pending, or already handed to the assembler, is rejected.
func (p *TransactionPool) Admit(tx *ledger.Transaction) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if tx.ID == "" {
		return fmt.Errorf("%w: empty id", ledger.ErrInvalidTransaction)
	}
	if _, ok := p.pending[tx.ID]; ok {
		return fmt.Errorf("%w: %s already pending", ledger.ErrDuplicateTransaction, tx.ID)
	}
	if _, ok := p.consumed[tx.ID]; ok {
		return fmt.Errorf("%w: %s already consumed", ledger.ErrDuplicateTransaction, tx.ID)
	}
	if p.d.Len() >= p.capacity {
		return fmt.Errorf("%w: capacity %d", ledger.ErrPoolFull, p.capacity)
	}
	p.d.PushBack(tx)
	p.pending[tx.ID] = struct{}{}
	return nil
}

// FillBatch dequeues up to maxSize transactions in FIFO admission order.
// Ownership transfers to the caller: the pool never re-offers a transaction
// it handed out.
func (p *TransactionPool) FillBatch(maxSize int) []*ledger.Transaction {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := p.d.Len()
	if n > maxSize {
		n = maxSize
	}
	ret := make([]*ledger.Transaction, 0, n)
	for i := 0; i < n; i++ {
		tx := p.d.PopFront()
		delete(p.pending, tx.ID)
		p.consumed[tx.ID] = struct{}{}
		ret = append(ret, tx)
	}
	return ret
}

// Len returns the number of pending transactions
func (p *TransactionPool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.d.Len()
}
