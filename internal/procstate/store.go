package procstate

import (
	"sync"
)

// Store holds the canonical per-PID snapshot map. All mutation happens on
// the monitor engine goroutine; the lock exists so that read-only
// consumers (the HTTP/WS layer) can take consistent copies while the
// engine is writing.
type Store struct {
	mu    sync.RWMutex
	procs map[int32]Snapshot
}

func NewStore() *Store {
	return &Store{
		procs: make(map[int32]Snapshot),
	}
}

func (s *Store) Get(pid int32) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.procs[pid]
	return snap, ok
}

// All returns a copy of the current snapshot map. Mutating the returned
// map does not affect the store.
func (s *Store) All() map[int32]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int32]Snapshot, len(s.procs))
	for pid, snap := range s.procs {
		out[pid] = snap
	}
	return out
}

func (s *Store) Put(pid int32, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[pid] = snap
}

func (s *Store) Remove(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, pid)
}

// SetAll replaces the entire snapshot map with a copy of curr. Used by
// the engine after a poll diff so that the store reflects exactly the
// last scan.
func (s *Store) SetAll(curr map[int32]Snapshot) {
	next := make(map[int32]Snapshot, len(curr))
	for pid, snap := range curr {
		next[pid] = snap
	}
	s.mu.Lock()
	s.procs = next
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.procs)
}

// HungCount returns the number of currently not-responding processes.
func (s *Store) HungCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, snap := range s.procs {
		if !snap.Responding {
			count++
		}
	}
	return count
}
