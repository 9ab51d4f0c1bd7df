package authflow

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultStateTTL bounds how long an issued state stays consumable when no
// explicit TTL is configured.
const DefaultStateTTL = 15 * time.Minute

// stateEntry tracks one pending authorization attempt.
type stateEntry struct {
	userID   string
	issuedAt time.Time
}

// StateStore is the process-wide map of pending OAuth states. It is shared
// between the begin and complete paths, so all access goes through a mutex;
// Consume removes the entry under the same lock it is read with, so two
// concurrent callbacks presenting the same state cannot both succeed.
//
// Entries are cleared on process restart; losing a pending state only means
// the user restarts the authorization flow.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]stateEntry

	ttl           time.Duration
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	logger        *slog.Logger
}

// NewStateStore creates a state store whose entries expire after ttl.
// A background sweep removes stale entries so an abandoned flow cannot be
// completed indefinitely.
func NewStateStore(ttl time.Duration, logger *slog.Logger) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &StateStore{
		pending:       make(map[string]stateEntry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(time.Minute),
		cleanupDone:   make(chan struct{}),
		logger:        logger,
	}

	go s.sweepExpired()

	return s
}

// Issue generates a fresh unpredictable state token and registers its
// binding to the given user identifier.
func (s *StateStore) Issue(userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[state] = stateEntry{userID: userID, issuedAt: time.Now()}

	return state, nil
}

// Consume atomically looks up and removes a pending state, returning the
// bound user identifier. The second return is false for unknown, already
// consumed, or expired states.
func (s *StateStore) Consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)

	if time.Since(entry.issuedAt) > s.ttl {
		return "", false
	}
	return entry.userID, true
}

// Len returns the number of pending states.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// sweepExpired periodically drops states older than the TTL.
func (s *StateStore) sweepExpired() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.mu.Lock()
			now := time.Now()
			expired := 0
			for state, entry := range s.pending {
				if now.Sub(entry.issuedAt) > s.ttl {
					delete(s.pending, state)
					expired++
				}
			}
			s.mu.Unlock()
			if expired > 0 {
				s.logger.Info("swept expired oauth states", "count", expired)
			}
		case <-s.cleanupDone:
			return
		}
	}
}

// Stop stops the background sweep goroutine.
func (s *StateStore) Stop() {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.cleanupDone != nil {
		close(s.cleanupDone)
	}
}
