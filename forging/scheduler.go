package forging

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/slotledger/slotledger/ledger"
	"github.com/slotledger/slotledger/util"
	"golang.org/x/crypto/blake2b"
)

// ActiveSetSize is the chain-wide number of leaders in the active set. Each
// round spans exactly one slot per member.
const ActiveSetSize = 101

// RoundPermutation computes the leader order for one round: a Fisher-Yates
// shuffle whose swap indices are drawn from a blake2b stream over
// (seed, round, counter). Pure function: identical inputs give the identical
// permutation on every node. The input set is canonicalized by sorting, so
// the permutation does not depend on caller ordering.
func RoundPermutation(activeSet []string, seed []byte, round int64) []string {
	perm := make([]string, len(activeSet))
	copy(perm, activeSet)
	sort.Strings(perm)

	var roundBin [8]byte
	binary.BigEndian.PutUint64(roundBin[:], uint64(round))

	counter := uint64(0)
	next := func() uint64 {
		var cntBin [8]byte
		binary.BigEndian.PutUint64(cntBin[:], counter)
		counter++
		h := blake2b.Sum256(util.Concat(seed, roundBin[:], cntBin[:]))
		return binary.BigEndian.Uint64(h[:8])
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := next() % uint64(i+1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// span is a run of rounds governed by one (set, seed) pair. A staged update
// creates a new span at the round boundary where it took effect; earlier
// spans are never touched, so a past slot always re-derives its leader from
// the inputs that were in force when the slot was current.
type span struct {
	fromSlot  int64
	baseRound int64
	set       []string
	seed      []byte
}

// Scheduler assigns exactly one leader to each slot. A round is one full pass
// over the active set without replacement; at round boundaries the pending
// seed and pending set changes take effect and the permutation is recomputed.
//
// Set and seed changes never affect the round in progress, nor any earlier
// round: they are staged and become a new span when a later round is first
// queried.
type Scheduler struct {
	mutex sync.Mutex

	spans       []span
	pendingSet  []string
	pendingSeed []byte

	// highest round ever queried; staged updates take effect at its successor
	highestRound int64

	// cache of the last computed round
	cachedRound int64
	cachedPerm  []string
}

func NewScheduler(activeSet []string, seed []byte) (*Scheduler, error) {
	if len(activeSet) == 0 {
		return nil, fmt.Errorf("%w: empty active set", ledger.ErrUnknownLeader)
	}
	if len(activeSet) > ActiveSetSize {
		return nil, fmt.Errorf("%w: active set of %d exceeds %d", ledger.ErrUnknownLeader, len(activeSet), ActiveSetSize)
	}
	set := make([]string, len(activeSet))
	copy(set, activeSet)
	return &Scheduler{
		spans: []span{{
			set:  set,
			seed: append([]byte(nil), seed...),
		}},
		cachedRound: -1,
	}, nil
}

// RoundOf returns the round index containing the slot, honoring the span
// boundaries in force at that slot
func (s *Scheduler) RoundOf(slot int64) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.roundOf(slot)
}

func (s *Scheduler) roundOf(slot int64) int64 {
	sp := s.spanOf(slot)
	return sp.baseRound + (slot-sp.fromSlot)/int64(len(sp.set))
}

// LeaderFor returns the leader assigned to the slot. O(1) after the amortized
// per-round shuffle; past slots always reproduce their original assignment.
func (s *Scheduler) LeaderFor(slot int64) (string, error) {
	if slot < 0 {
		return "", fmt.Errorf("%w: negative slot %d", ledger.ErrInvalidSlot, slot)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.maybeApplyPending(slot)

	sp := s.spanOf(slot)
	round := s.roundOf(slot)
	if round != s.cachedRound {
		s.cachedPerm = RoundPermutation(sp.set, sp.seed, round)
		s.cachedRound = round
	}
	if round > s.highestRound {
		s.highestRound = round
	}
	return s.cachedPerm[(slot-sp.fromSlot)%int64(len(sp.set))], nil
}

// UpdateSeed stages the next round-randomization seed, typically the hash of
// the last committed block of the current round. Takes effect at the next
// round boundary.
func (s *Scheduler) UpdateSeed(seed []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.pendingSeed = append([]byte(nil), seed...)
}

// UpdateActiveSet stages a replacement active set, effective at the next
// round boundary
func (s *Scheduler) UpdateActiveSet(activeSet []string) error {
	if len(activeSet) == 0 {
		return fmt.Errorf("%w: empty active set", ledger.ErrUnknownLeader)
	}
	if len(activeSet) > ActiveSetSize {
		return fmt.Errorf("%w: active set of %d exceeds %d", ledger.ErrUnknownLeader, len(activeSet), ActiveSetSize)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.pendingSet = append([]string(nil), activeSet...)
	return nil
}

// IsActive tells if the identity belongs to the currently effective set
func (s *Scheduler) IsActive(identity string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, m := range s.spans[len(s.spans)-1].set {
		if m == identity {
			return true
		}
	}
	return false
}

// spanOf returns the span governing the slot
func (s *Scheduler) spanOf(slot int64) *span {
	for i := len(s.spans) - 1; i >= 0; i-- {
		if s.spans[i].fromSlot <= slot {
			return &s.spans[i]
		}
	}
	return &s.spans[0]
}

// maybeApplyPending turns staged updates into a new span once a slot at or
// beyond the next round boundary is queried. The boundary is derived from
// the highest round seen, so the round in progress keeps its span.
func (s *Scheduler) maybeApplyPending(slot int64) {
	if s.pendingSet == nil && s.pendingSeed == nil {
		return
	}
	last := &s.spans[len(s.spans)-1]
	boundaryRound := s.highestRound + 1
	boundarySlot := last.fromSlot + (boundaryRound-last.baseRound)*int64(len(last.set))
	if slot < boundarySlot {
		return
	}
	next := span{
		fromSlot:  boundarySlot,
		baseRound: boundaryRound,
		set:       last.set,
		seed:      last.seed,
	}
	if s.pendingSet != nil {
		next.set = s.pendingSet
		s.pendingSet = nil
	}
	if s.pendingSeed != nil {
		next.seed = s.pendingSeed
		s.pendingSeed = nil
	}
	s.spans = append(s.spans, next)
}
