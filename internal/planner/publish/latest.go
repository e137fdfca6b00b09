package publish

import "sync/atomic"

// LatestStore keeps the most recent cycle record behind an atomic pointer
// for the HTTP API and debug handlers to read without locking.
type LatestStore struct {
	latest atomic.Pointer[Outputs]
}

// NewLatestStore creates an empty store.
func NewLatestStore() *LatestStore {
	return &LatestStore{}
}

// Publish replaces the stored record.
func (s *LatestStore) Publish(out Outputs) {
	s.latest.Store(&out)
}

// Latest returns the most recent record, or nil before the first cycle.
func (s *LatestStore) Latest() *Outputs {
	return s.latest.Load()
}
