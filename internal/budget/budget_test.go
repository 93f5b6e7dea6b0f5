package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeterChargeWithinLimit(t *testing.T) {
	m := NewMeter(3)
	require.NoError(t, m.Charge(1))
	require.NoError(t, m.Charge(2))
	assert.Equal(t, 3, m.Used())
	assert.Equal(t, 0, m.Remaining())
}

func TestMeterRefusesOverCharge(t *testing.T) {
	m := NewMeter(2)
	require.NoError(t, m.Charge(2))
	err := m.Charge(1)
	require.ErrorIs(t, err, ErrExceeded)
	// Refused charge leaves the counter untouched.
	assert.Equal(t, 2, m.Used())
}

func TestMeterUnlimited(t *testing.T) {
	m := NewMeter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Charge(1))
	}
	assert.Equal(t, 100, m.Used())
	assert.Equal(t, -1, m.Remaining())
}

func TestMeterConcurrentChargesNeverExceedLimit(t *testing.T) {
	const limit = 50
	m := NewMeter(limit)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Charge(1) == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	n := 0
	for range granted {
		n++
	}
	assert.Equal(t, limit, n)
	assert.Equal(t, limit, m.Used())
}
