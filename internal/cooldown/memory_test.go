package cooldown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMemoryStore_EligibilityWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.IsEligible(ctx, "irrigation", "c1", 3, t0)
	require.NoError(t, err)
	assert.True(t, ok, "no record means eligible")

	require.NoError(t, s.MarkTriggered(ctx, "irrigation", "c1", t0))

	for _, tt := range []struct {
		offset time.Duration
		want   bool
	}{
		{0, false},
		{time.Hour, false},
		{3*day - time.Nanosecond, false},
		{3 * day, true},
		{10 * day, true},
	} {
		ok, err := s.IsEligible(ctx, "irrigation", "c1", 3, t0.Add(tt.offset))
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "offset %s", tt.offset)
	}

	ok, _ = s.IsEligible(ctx, "irrigation", "c2", 3, t0)
	assert.True(t, ok, "other cultivation is independent")
}

func TestMemoryStore_TryAcquire(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.TryAcquire(ctx, "fert", "c1", 7, t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquire(ctx, "fert", "c1", 7, t0.Add(6*day))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TryAcquire(ctx, "fert", "c1", 7, t0.Add(7*day))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_TryAcquire_Exclusive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const callers = 64
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.TryAcquire(ctx, "severe", "c1", 1, t0)
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}

func TestMemoryStore_TryAcquire_ContentionNotEligible(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := s.pairLock(key{"severe", "c1"})
	l.Lock()
	ok, err := s.TryAcquire(ctx, "severe", "c1", 1, t0)
	l.Unlock()

	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TryAcquire(ctx, "severe", "c1", 1, t0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_Release(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, _ := s.TryAcquire(ctx, "harvest", "c1", 7, t0)
	require.True(t, ok)

	// A release for a different firing leaves the record alone.
	require.NoError(t, s.Release(ctx, "harvest", "c1", t0.Add(time.Minute)))
	ok, _ = s.IsEligible(ctx, "harvest", "c1", 7, t0.Add(time.Hour))
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "harvest", "c1", t0))
	ok, _ = s.IsEligible(ctx, "harvest", "c1", 7, t0.Add(time.Hour))
	assert.True(t, ok)
}

func TestMemoryStore_PurgeAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.MarkTriggered(ctx, "irrigation", "c1", t0))
	require.NoError(t, s.MarkTriggered(ctx, "irrigation", "c2", t0.Add(-40*day)))
	require.NoError(t, s.MarkTriggered(ctx, "fert", "c1", t0.Add(-2*day)))
	require.NoError(t, s.MarkTriggered(ctx, "retired", "c1", t0))

	active, err := s.CountActive(ctx, t0, map[string]int{"irrigation": 3, "fert": 7})
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	removed, err := Purge(ctx, s, t0, 30*day)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, s.Snapshot(), 3)
}

func TestMemoryStore_PurgeDropsPairLocks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.MarkTriggered(ctx, "irrigation", "old", t0.Add(-40*day)))
	require.NoError(t, s.MarkTriggered(ctx, "irrigation", "busy", t0.Add(-40*day)))
	require.NoError(t, s.MarkTriggered(ctx, "irrigation", "fresh", t0))
	ok, _ := s.TryAcquire(ctx, "harvest", "released", 7, t0)
	require.True(t, ok)
	require.NoError(t, s.Release(ctx, "harvest", "released", t0))

	busy := s.pairLock(key{"irrigation", "busy"})
	busy.Lock()
	removed, err := s.PurgeOlderThan(ctx, t0.Add(-30*day))
	busy.Unlock()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	s.mu.Lock()
	_, oldKept := s.locks[key{"irrigation", "old"}]
	_, releasedKept := s.locks[key{"harvest", "released"}]
	_, busyKept := s.locks[key{"irrigation", "busy"}]
	_, freshKept := s.locks[key{"irrigation", "fresh"}]
	lockCount := len(s.locks)
	s.mu.Unlock()

	assert.False(t, oldKept)
	assert.False(t, releasedKept)
	assert.True(t, busyKept, "a held lock must survive the purge")
	assert.True(t, freshKept)
	assert.Equal(t, 2, lockCount)

	// Pairs whose lock was dropped still work.
	ok, err = s.TryAcquire(ctx, "irrigation", "old", 1, t0)
	require.NoError(t, err)
	assert.True(t, ok)

	// Next purge sweeps the lock that was held last time.
	_, err = s.PurgeOlderThan(ctx, t0.Add(-30*day))
	require.NoError(t, err)
	s.mu.Lock()
	_, busyKept = s.locks[key{"irrigation", "busy"}]
	s.mu.Unlock()
	assert.False(t, busyKept)
}

func TestWindow(t *testing.T) {
	assert.Equal(t, time.Duration(0), Window(0))
	assert.Equal(t, time.Duration(0), Window(-2))
	assert.Equal(t, 48*time.Hour, Window(2))
	assert.True(t, Elapsed(t0, 0, t0))
}
