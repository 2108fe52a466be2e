package cooldown

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type key struct {
	rule        string
	cultivation string
}

// MemoryStore is an in-process Store. Records are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[key]time.Time
	locks   map[key]*sync.Mutex
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[key]time.Time),
		locks:   make(map[key]*sync.Mutex),
	}
}

func (s *MemoryStore) pairLock(k key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// owns reports whether l is still the registered lock for k. PurgeOlderThan
// may drop a lock between pairLock and Lock.
func (s *MemoryStore) owns(k key, l *sync.Mutex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[k] == l
}

func (s *MemoryStore) lockPair(k key) *sync.Mutex {
	for {
		l := s.pairLock(k)
		l.Lock()
		if s.owns(k, l) {
			return l
		}
		l.Unlock()
	}
}

func (s *MemoryStore) tryLockPair(k key) (*sync.Mutex, bool) {
	for {
		l := s.pairLock(k)
		if !l.TryLock() {
			return nil, false
		}
		if s.owns(k, l) {
			return l, true
		}
		l.Unlock()
	}
}

func (s *MemoryStore) last(k key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[k]
	return t, ok
}

func (s *MemoryStore) set(k key, t time.Time) {
	s.mu.Lock()
	s.records[k] = t
	s.mu.Unlock()
}

func (s *MemoryStore) IsEligible(_ context.Context, ruleID, cultivationID string, cooldownDays int, now time.Time) (bool, error) {
	last, ok := s.last(key{ruleID, cultivationID})
	if !ok {
		return true, nil
	}
	return Elapsed(last, cooldownDays, now), nil
}

func (s *MemoryStore) MarkTriggered(_ context.Context, ruleID, cultivationID string, now time.Time) error {
	k := key{ruleID, cultivationID}
	l := s.lockPair(k)
	defer l.Unlock()
	s.set(k, now)
	return nil
}

// TryAcquire does not wait: if another caller is inside the critical section
// for the same pair, the pair is treated as not eligible this pass.
func (s *MemoryStore) TryAcquire(_ context.Context, ruleID, cultivationID string, cooldownDays int, now time.Time) (bool, error) {
	k := key{ruleID, cultivationID}
	l, ok := s.tryLockPair(k)
	if !ok {
		return false, nil
	}
	defer l.Unlock()

	if last, ok := s.last(k); ok && !Elapsed(last, cooldownDays, now) {
		return false, nil
	}
	s.set(k, now)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, ruleID, cultivationID string, firedAt time.Time) error {
	k := key{ruleID, cultivationID}
	l := s.lockPair(k)
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.records[k]; ok && t.Equal(firedAt) {
		delete(s.records, k)
	}
	return nil
}

// PurgeOlderThan also drops the pair locks of keys left without a record.
// A lock that is currently held is kept.
func (s *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, t := range s.records {
		if t.Before(cutoff) {
			delete(s.records, k)
			removed++
		}
	}
	for k, l := range s.locks {
		if _, ok := s.records[k]; ok || !l.TryLock() {
			continue
		}
		delete(s.locks, k)
		l.Unlock()
	}
	return removed, nil
}

func (s *MemoryStore) CountActive(_ context.Context, now time.Time, windows map[string]int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for k, t := range s.records {
		days, ok := windows[k.rule]
		if !ok {
			continue
		}
		if !Elapsed(t, days, now) {
			active++
		}
	}
	return active, nil
}

// Snapshot returns a copy of all records.
func (s *MemoryStore) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for k, t := range s.records {
		out = append(out, Record{RuleID: k.rule, CultivationID: k.cultivation, LastTriggeredAt: t})
	}
	return out
}
