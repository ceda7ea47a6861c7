package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a process-local map. Restart or horizontal
// scaling loses in-flight workflows; RedisStore covers that case.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ownerID int64, state State) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{OwnerID: ownerID, State: state, Step: 0, Touched: s.now()}
	s.sessions[ownerID] = sess
	out := *sess
	return &out
}

func (s *MemoryStore) Get(ownerID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		return nil, false
	}
	out := *sess
	return &out, true
}

func (s *MemoryStore) MergeData(ownerID int64, partial Draft) {
	s.mutate(ownerID, func(sess *Session) {
		sess.Data.merge(partial)
	})
}

func (s *MemoryStore) SetStep(ownerID int64, step int) {
	s.mutate(ownerID, func(sess *Session) {
		sess.Step = step
	})
}

func (s *MemoryStore) AdvanceStep(ownerID int64) {
	s.mutate(ownerID, func(sess *Session) {
		sess.Step++
	})
}

func (s *MemoryStore) Mutate(ownerID int64, fn func(*Session)) bool {
	return s.mutate(ownerID, fn)
}

func (s *MemoryStore) Clear(ownerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, ownerID)
}

func (s *MemoryStore) mutate(ownerID int64, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		return false
	}
	fn(sess)
	sess.Touched = s.now()
	return true
}

// StartSweeper drops sessions untouched for longer than ttl, calling onExpire
// with each dropped owner id. Runs until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, ttl, interval time.Duration, onExpire func(ownerID int64)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range s.sweep(ttl) {
					if onExpire != nil {
						onExpire(id)
					}
				}
			}
		}
	}()
}

func (s *MemoryStore) sweep(ttl time.Duration) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	var expired []int64
	for id, sess := range s.sessions {
		if sess.Touched.Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}
