package state

import (
	"context"

	"github.com/slotledger/slotledger/ledger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// BalancesSequence is the single sequence point for all account mutations.
// One worker goroutine exclusively owns the AccountStore; batches are
// message-passed to it and applied strictly in arrival order. Readers go
// through Read, which runs on the same worker, so no access ever observes a
// half-applied batch.

const defaultRequestBuffer = 64

type applyResult struct {
	applied []*ledger.Transaction
	err     error
}

type request struct {
	txs   []*ledger.Transaction
	read  func(*AccountStore)
	reply chan applyResult
}

type BalancesSequence struct {
	store    *AccountStore
	requests chan request
	stopped  atomic.Bool
	done     chan struct{}
	log      *zap.SugaredLogger
}

func NewBalancesSequence(store *AccountStore, log *zap.SugaredLogger) *BalancesSequence {
	ret := &BalancesSequence{
		store:    store,
		requests: make(chan request, defaultRequestBuffer),
		done:     make(chan struct{}),
		log:      log,
	}
	go ret.loop()
	return ret
}

func (s *BalancesSequence) loop() {
	defer close(s.done)

	for req := range s.requests {
		if req.read != nil {
			req.read(s.store)
			close(req.reply)
			continue
		}
		applied, err := ApplyBatch(s.store, req.txs)
		if err != nil {
			s.log.Warnf("balances sequence: %d of %d transactions rejected: %v",
				len(req.txs)-len(applied), len(req.txs), err)
		}
		req.reply <- applyResult{applied: applied, err: err}
	}
}

// SubmitBatch queues a batch and waits for it to be applied. The request
// buffer is bounded, so submission blocks (backpressure) when the worker is
// behind; ctx cancels the wait, not an application already in flight.
func (s *BalancesSequence) SubmitBatch(ctx context.Context, txs []*ledger.Transaction) ([]*ledger.Transaction, error) {
	if s.stopped.Load() {
		panic("attempt to submit to a stopped balances sequence")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := request{txs: txs, reply: make(chan applyResult, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.applied, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Read runs fun on the worker with exclusive access to the store
func (s *BalancesSequence) Read(ctx context.Context, fun func(store *AccountStore)) error {
	if s.stopped.Load() {
		panic("attempt to read from a stopped balances sequence")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := request{read: fun, reply: make(chan applyResult, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains queued requests and terminates the worker
func (s *BalancesSequence) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	close(s.requests)
	<-s.done
}
