// Package checkpoint holds in-flight TestIteration progress in memory
// between steps, per spec.md §4.5's persistence rule: "Intermediate
// updates are held in memory and emitted as view messages for progress
// but not committed until completion." Adapted from the teacher's
// request-checkpoint store (originally keyed by function invocation;
// here keyed by iteration).
package checkpoint

import (
	"encoding/json"
	"sync"
	"time"
)

// Snapshot is one in-flight iteration's progress marker: which step it is
// on and a JSON-serialized copy of whatever that step wants recoverable
// if the supervisor needs to inspect a stuck iteration before its final
// commit.
type Snapshot struct {
	IterationID string          `json:"iteration_id"`
	RevisionID  string          `json:"revision_id"`
	Step        string          `json:"step"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Store is an in-memory, TTL-expiring table of in-flight iteration
// snapshots. Nothing here is ever the system of record — ConfigStore is —
// so a restart losing this table loses only mid-run visibility, not data.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot // iteration ID -> snapshot
	ttl       time.Duration
}

// NewStore creates a checkpoint store whose entries expire after ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	s := &Store{
		snapshots: make(map[string]*Snapshot),
		ttl:       ttl,
	}
	go s.cleanupLoop()
	return s
}

// Save records iterationID's current step and an arbitrary JSON payload.
func (s *Store) Save(iterationID, revisionID, step string, data json.RawMessage) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[iterationID] = &Snapshot{
		IterationID: iterationID,
		RevisionID:  revisionID,
		Step:        step,
		Data:        data,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
}

// Load returns iterationID's snapshot, or nil if none exists or it has
// expired.
func (s *Store) Load(iterationID string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[iterationID]
	if !ok {
		return nil
	}
	if time.Now().After(snap.ExpiresAt) {
		return nil
	}
	cp := *snap
	return &cp
}

// Delete removes iterationID's snapshot, once RunIteration commits the
// final Iteration tree and the in-flight marker is no longer useful.
func (s *Store) Delete(iterationID string) {
	s.mu.Lock()
	delete(s.snapshots, iterationID)
	s.mu.Unlock()
}

// ListByRevision returns every live snapshot for a given config revision —
// useful for an operator dashboard showing what's currently running
// against a revision before a config push.
func (s *Store) ListByRevision(revisionID string) []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []*Snapshot
	for _, snap := range s.snapshots {
		if snap.RevisionID == revisionID && now.Before(snap.ExpiresAt) {
			cp := *snap
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, snap := range s.snapshots {
			if now.After(snap.ExpiresAt) {
				delete(s.snapshots, id)
			}
		}
		s.mu.Unlock()
	}
}
