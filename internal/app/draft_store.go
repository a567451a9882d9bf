package app

import (
	"context"
	"sync"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"
	"github.com/Marcoscjr/temporipro2-sub000/internal/metrics"
)

const purgeInterval = 5 * time.Minute

// draftSession is one operator's in-progress draft. mu serializes commands
// because core.Draft is not safe for concurrent use.
type draftSession struct {
	mu       sync.Mutex
	draft    *core.Draft
	identity core.Identity
	sort     map[string]core.SortState // by line ID
	touched  time.Time

	// contract is set once the draft has been saved; the session is read-only after that.
	contract *core.Contract
}

// draftStore is a thread-safe in-memory store of draft sessions with idle expiry.
type draftStore struct {
	mu       sync.Mutex
	sessions map[string]*draftSession
	ttl      time.Duration
	now      func() time.Time
}

func newDraftStore(ttl time.Duration, now func() time.Time) *draftStore {
	return &draftStore{sessions: make(map[string]*draftSession), ttl: ttl, now: now}
}

func (s *draftStore) put(sess *draftSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.touched = s.now()
	s.sessions[sess.draft.ID] = sess
	metrics.SetActiveDrafts(len(s.sessions))
}

// get returns the session and marks it as used. Expired sessions are evicted.
func (s *draftStore) get(id string) (*draftSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		delete(s.sessions, id)
		metrics.SetActiveDrafts(len(s.sessions))
		return nil, false
	}
	sess.touched = s.now()
	return sess, true
}

func (s *draftStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	metrics.SetActiveDrafts(len(s.sessions))
	return ok
}

func (s *draftStore) expired(sess *draftSession) bool {
	return s.ttl > 0 && s.now().Sub(sess.touched) > s.ttl
}

// purge evicts every expired session and returns how many were removed.
func (s *draftStore) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	metrics.SetActiveDrafts(len(s.sessions))
	return n
}

// startPurge starts a background goroutine that evicts expired drafts every 5 minutes.
func (s *draftStore) startPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purge()
			}
		}
	}()
}
