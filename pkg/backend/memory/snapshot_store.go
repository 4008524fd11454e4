// Package memory keeps the latest book snapshot in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/erain9/lob/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// SnapshotStore holds the most recently published snapshot. Readers never
// touch the book lock.
type SnapshotStore struct {
	sync.RWMutex
	latest    core.Snapshot
	has       bool
	published uint64
}

// NewSnapshotStore creates an empty SnapshotStore
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// PublishSnapshot replaces the stored snapshot
func (s *SnapshotStore) PublishSnapshot(_ context.Context, snap core.Snapshot) error {
	s.Lock()
	defer s.Unlock()

	s.latest = snap
	s.has = true
	s.published++
	return nil
}

// Latest returns the stored snapshot, or false if none was published
func (s *SnapshotStore) Latest() (core.Snapshot, bool) {
	s.RLock()
	defer s.RUnlock()
	return s.latest, s.has
}

// Mid returns the mid price of the stored snapshot
func (s *SnapshotStore) Mid() (fpdecimal.Decimal, bool) {
	snap, ok := s.Latest()
	if !ok {
		return fpdecimal.Zero, false
	}
	return snap.Mid()
}

// Published returns how many snapshots were published
func (s *SnapshotStore) Published() uint64 {
	s.RLock()
	defer s.RUnlock()
	return s.published
}
