// Package forging implements the deterministic slot-to-leader assignment and
// the block production loop on top of it.
package forging

import (
	"fmt"
	"time"

	"github.com/slotledger/slotledger/ledger"
)

// SlotClock converts wall-clock time to monotonic slot numbers and back.
// Pure, total functions over non-negative inputs.
type SlotClock struct {
	Epoch        int64 // unix seconds of slot 0
	SlotDuration int64 // seconds per slot
}

const DefaultSlotDurationSec = 10

func NewSlotClock(epochUnixSec int64, slotDurationSec ...int64) SlotClock {
	d := int64(DefaultSlotDurationSec)
	if len(slotDurationSec) > 0 {
		d = slotDurationSec[0]
	}
	return SlotClock{Epoch: epochUnixSec, SlotDuration: d}
}

// SlotOf returns the slot containing the given unix timestamp
func (c SlotClock) SlotOf(unixSec int64) (int64, error) {
	if unixSec < c.Epoch {
		return 0, fmt.Errorf("%w: timestamp %d before epoch %d", ledger.ErrInvalidSlot, unixSec, c.Epoch)
	}
	return (unixSec - c.Epoch) / c.SlotDuration, nil
}

// SlotStartTime returns the unix timestamp at which the slot begins
func (c SlotClock) SlotStartTime(slot int64) (int64, error) {
	if slot < 0 {
		return 0, fmt.Errorf("%w: negative slot %d", ledger.ErrInvalidSlot, slot)
	}
	return c.Epoch + slot*c.SlotDuration, nil
}

// SlotEnd returns the wall-clock deadline of the slot, used to abandon
// forging attempts that run over
func (c SlotClock) SlotEnd(slot int64) (time.Time, error) {
	start, err := c.SlotStartTime(slot + 1)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(start, 0), nil
}
