package forging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slotledger/slotledger/ledger"
	"github.com/slotledger/slotledger/pool"
	"github.com/slotledger/slotledger/util/slottimer"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Status of the forging state machine
type Status byte

const (
	StatusIdle = Status(iota)
	StatusAwaitingSlot
	StatusForging
	StatusCommitted
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusAwaitingSlot:
		return "AwaitingSlot"
	case StatusForging:
		return "Forging"
	case StatusCommitted:
		return "Committed"
	case StatusSkipped:
		return "Skipped"
	}
	return "???"
}

const DefaultMaxBatchSize = 25

// Forger drives block production: at each slot boundary it asks the scheduler
// who leads, pulls a batch from the pool and hands it to the assembler. At
// most one block is ever produced per slot, and slot N+1 is not attempted
// until slot N has resolved as committed or skipped.
type Forger struct {
	clock     SlotClock
	sched     *Scheduler
	txPool    *pool.TransactionPool
	assembler ledger.BlockAssembler
	log       *zap.SugaredLogger

	identity string
	maxBatch int

	mutex           sync.Mutex
	status          Status
	committed       map[int64]struct{}
	resolvedThrough int64 // highest slot resolved, committed or skipped
	inFlight        bool  // an attempt is running between the checks and the resolution
	inFlightSlot    int64

	running atomic.Bool
	timer   *slottimer.SlotTimer
}

type Params struct {
	Identity     string // identity this forger signs for
	MaxBatchSize int
}

func NewForger(clock SlotClock, sched *Scheduler, txPool *pool.TransactionPool, assembler ledger.BlockAssembler, par Params, log *zap.SugaredLogger) *Forger {
	maxBatch := par.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Forger{
		clock:           clock,
		sched:           sched,
		txPool:          txPool,
		assembler:       assembler,
		log:             log,
		identity:        par.Identity,
		maxBatch:        maxBatch,
		status:          StatusIdle,
		committed:       make(map[int64]struct{}),
		resolvedThrough: -1,
	}
}

func (f *Forger) Status() Status {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.status
}

// GenerateBlock produces the block for the slot on behalf of caller. It
// refuses a slot that already carries a block, a slot that has passed
// unforged, and a caller that is not the slot's assigned leader. An attempt
// still running at the end of the slot is abandoned and the slot resolves as
// skipped.
func (f *Forger) GenerateBlock(ctx context.Context, slot int64, caller string) (*ledger.Block, error) {
	if slot < 0 {
		return nil, fmt.Errorf("%w: negative slot %d", ledger.ErrInvalidSlot, slot)
	}
	// the slot state checks come before eligibility: a slot that already
	// carries a block reports ErrSlotAlreadyForged to every caller, leader
	// or not
	f.mutex.Lock()
	if _, ok := f.committed[slot]; ok {
		f.mutex.Unlock()
		return nil, fmt.Errorf("%w: slot %d", ledger.ErrSlotAlreadyForged, slot)
	}
	if slot <= f.resolvedThrough {
		f.mutex.Unlock()
		return nil, fmt.Errorf("%w: slot %d already resolved as skipped", ledger.ErrInvalidSlot, slot)
	}
	if f.inFlight {
		busy := f.inFlightSlot
		f.mutex.Unlock()
		if slot == busy {
			return nil, fmt.Errorf("%w: attempt for slot %d already in progress", ledger.ErrSlotAlreadyForged, slot)
		}
		return nil, fmt.Errorf("%w: slot %d queried while slot %d is being forged", ledger.ErrInvalidSlot, slot, busy)
	}
	prevStatus := f.status
	f.inFlight = true
	f.inFlightSlot = slot
	f.status = StatusForging
	f.mutex.Unlock()

	leader, err := f.sched.LeaderFor(slot)
	if err == nil && caller != leader {
		err = fmt.Errorf("%w: slot %d belongs to %s, not %s", ledger.ErrNotEligibleForger, slot, leader, caller)
	}
	if err != nil {
		// the slot is not resolved, its leader can still forge it
		f.mutex.Lock()
		f.inFlight = false
		f.status = prevStatus
		f.mutex.Unlock()
		return nil, err
	}

	blk, err := f.forge(ctx, slot, leader)

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.inFlight = false
	// slots between the previous resolution point and this one passed without
	// a block, they resolve as skipped and are never retried
	f.resolvedThrough = slot
	if err != nil {
		f.status = StatusSkipped
		return nil, err
	}
	f.committed[slot] = struct{}{}
	f.status = StatusCommitted
	// the committed block reseeds the shuffle at the next round boundary
	f.sched.UpdateSeed(blk.SeedBytes())
	return blk, nil
}

func (f *Forger) forge(ctx context.Context, slot int64, leader string) (*ledger.Block, error) {
	deadline, err := f.clock.SlotEnd(slot)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	batch := f.txPool.FillBatch(f.maxBatch)

	blk, err := f.assembler.Assemble(leader, slot, batch)
	if err != nil {
		return nil, fmt.Errorf("forging slot %d: %w", slot, err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("forging slot %d abandoned: %w", slot, ctx.Err())
	}
	if err = f.assembler.Commit(blk); err != nil {
		return nil, fmt.Errorf("forging slot %d: %w", slot, err)
	}
	return blk, nil
}

// Run wakes the forger at every slot boundary until ctx is cancelled. When
// the local identity leads the slot, a block is produced; otherwise the slot
// is left to its leader and resolves as skipped locally if no block arrives.
func (f *Forger) Run(ctx context.Context) error {
	if f.running.Swap(true) {
		return fmt.Errorf("forger already running")
	}
	f.timer = slottimer.Create()
	defer func() {
		f.timer.Stop()
		f.running.Store(false)
	}()

	f.mutex.Lock()
	f.status = StatusAwaitingSlot
	f.mutex.Unlock()

	slotCh := make(chan int64, 1)
	scheduleNext := func() {
		slot, err := f.clock.SlotOf(time.Now().Unix())
		if err != nil {
			slot = -1
		}
		start, _ := f.clock.SlotStartTime(slot + 1)
		f.timer.WaitUntilUnixSec(start, func() {
			select {
			case slotCh <- slot + 1:
			default:
			}
		})
	}
	scheduleNext()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case slot := <-slotCh:
			f.onSlot(ctx, slot)
			scheduleNext()
		}
	}
}

func (f *Forger) onSlot(ctx context.Context, slot int64) {
	leader, err := f.sched.LeaderFor(slot)
	if err != nil {
		f.log.Warnf("slot %d: %v", slot, err)
		return
	}
	if leader != f.identity {
		f.mutex.Lock()
		// not ours; mark everything before this slot resolved
		if slot-1 > f.resolvedThrough {
			f.resolvedThrough = slot - 1
		}
		f.status = StatusAwaitingSlot
		f.mutex.Unlock()
		return
	}
	blk, err := f.GenerateBlock(ctx, slot, f.identity)
	if err != nil {
		f.log.Warnf("slot %d skipped: %v", slot, err)
		return
	}
	f.log.Infof("slot %d committed block %s with %d transactions", slot, blk.ID, len(blk.Transactions))
}
