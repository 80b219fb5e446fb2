// Package slottimer schedules callbacks at future wall-clock instants, used
// by the forger to wake up at slot boundaries.
package slottimer

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

type SlotTimer struct {
	mutex   sync.RWMutex
	d       map[time.Time][]func()
	period  time.Duration
	stopped atomic.Bool
}

var defaultPollingPeriod = 100 * time.Millisecond

func Create(pollEvery ...time.Duration) *SlotTimer {
	ret := &SlotTimer{
		d:      make(map[time.Time][]func()),
		period: defaultPollingPeriod,
	}
	if len(pollEvery) > 0 {
		ret.period = pollEvery[0]
	}

	go ret.polling()
	return ret
}

func (d *SlotTimer) polling() {
	for {
		lst := make([][]func(), 0)
		dels := make([]time.Time, 0)

		time.Sleep(d.period)

		if d.stopped.Load() {
			return
		}

		nowis := time.Now()

		d.mutex.Lock()
		for t, l := range d.d {
			if t.After(nowis) {
				continue
			}
			dels = append(dels, t)
			lst = append(lst, l)
		}
		for _, t := range dels {
			delete(d.d, t)
		}
		d.mutex.Unlock()

		for _, l := range lst {
			for _, fun := range l {
				fun()
			}
		}
	}
}

func (d *SlotTimer) Stop() {
	d.stopped.Store(true)
}

func (d *SlotTimer) WaitUntil(t time.Time, fun func()) {
	if d.stopped.Load() {
		panic("SlotTimer already stopped")
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.d[t] = append(d.d[t], fun)
}

func (d *SlotTimer) WaitUntilUnixSec(t int64, fun func()) {
	d.WaitUntil(time.Unix(t, 0), fun)
}

func (d *SlotTimer) CallDelayed(t time.Duration, fun func()) {
	d.WaitUntil(time.Now().Add(t), fun)
}
