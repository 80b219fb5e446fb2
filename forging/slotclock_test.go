package forging

import (
	"testing"

	"github.com/slotledger/slotledger/ledger"
	"github.com/stretchr/testify/require"
)

func TestSlotClock(t *testing.T) {
	clock := NewSlotClock(1000, 10)

	t.Run("slot of", func(t *testing.T) {
		slot, err := clock.SlotOf(1000)
		require.NoError(t, err)
		require.EqualValues(t, 0, slot)

		slot, err = clock.SlotOf(1009)
		require.NoError(t, err)
		require.EqualValues(t, 0, slot)

		slot, err = clock.SlotOf(1010)
		require.NoError(t, err)
		require.EqualValues(t, 1, slot)

		slot, err = clock.SlotOf(1000 + 12345*10)
		require.NoError(t, err)
		require.EqualValues(t, 12345, slot)
	})
	t.Run("slot start time", func(t *testing.T) {
		start, err := clock.SlotStartTime(0)
		require.NoError(t, err)
		require.EqualValues(t, 1000, start)

		start, err = clock.SlotStartTime(7)
		require.NoError(t, err)
		require.EqualValues(t, 1070, start)
	})
	t.Run("roundtrip", func(t *testing.T) {
		for slot := int64(0); slot < 100; slot += 7 {
			start, err := clock.SlotStartTime(slot)
			require.NoError(t, err)
			back, err := clock.SlotOf(start)
			require.NoError(t, err)
			require.EqualValues(t, slot, back)
			// last second of the slot still maps to it
			back, err = clock.SlotOf(start + clock.SlotDuration - 1)
			require.NoError(t, err)
			require.EqualValues(t, slot, back)
		}
	})
	t.Run("invalid input", func(t *testing.T) {
		_, err := clock.SlotOf(999)
		require.ErrorIs(t, err, ledger.ErrInvalidSlot)

		_, err = clock.SlotStartTime(-1)
		require.ErrorIs(t, err, ledger.ErrInvalidSlot)
	})
}
