// Package storetest provides an in-memory store.Store fake for use in other
// packages' tests, mirroring the narrow-interface fakes teacher substitutes for its
// resource manager's podInterface in tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/arakoodev/k8s-cli-agents/internal/store"
	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

// Fake is an in-memory store.Store. All methods are safe for concurrent use, so
// tests can exercise the same single-use-token races the real store must handle.
type Fake struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	tokens   map[string]model.TokenID
}

// New builds an empty Fake.
func New() *Fake {
	return &Fake{sessions: map[string]model.Session{}, tokens: map[string]model.TokenID{}}
}

// InsertSession implements store.Store.
func (f *Fake) InsertSession(_ context.Context, row model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[row.SessionID]; ok {
		return store.ErrDuplicate
	}
	for _, s := range f.sessions {
		if s.JobName == row.JobName {
			return store.ErrDuplicate
		}
	}
	f.sessions[row.SessionID] = row
	return nil
}

// UpdateSessionPod implements store.Store.
func (f *Fake) UpdateSessionPod(_ context.Context, sessionID, podIP, podName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	row.PodIP = &podIP
	row.PodName = &podName
	f.sessions[sessionID] = row
	return nil
}

// GetSession implements store.Store.
func (f *Fake) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sessions[sessionID]
	if !ok || row.Expired(time.Now()) {
		return nil, store.ErrNotFound
	}
	cp := row
	return &cp, nil
}

// InsertTokenID implements store.Store.
func (f *Fake) InsertTokenID(_ context.Context, tokenID, sessionID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[tokenID]; ok {
		return store.ErrDuplicate
	}
	f.tokens[tokenID] = model.TokenID{TokenID: tokenID, SessionID: sessionID, ExpiresAt: expiresAt}
	return nil
}

// ConsumeTokenID implements store.Store, atomically under f.mu the way the
// Postgres store's single DELETE...WHERE statement is atomic.
func (f *Fake) ConsumeTokenID(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[tokenID]; !ok {
		return false, nil
	}
	delete(f.tokens, tokenID)
	return true, nil
}

// Ping implements store.Store.
func (f *Fake) Ping(context.Context) error { return nil }

// Close implements store.Store.
func (f *Fake) Close() error { return nil }

// HasTokenID reports whether tokenID is still present, for assertions like
// spec section 8's scenario S3 ("tokenId row for A is still present").
func (f *Fake) HasTokenID(tokenID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[tokenID]
	return ok
}

// SessionCount returns the number of session rows currently stored, for
// assertions that a rejected request never got as far as InsertSession.
func (f *Fake) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// TokenCount returns the number of tokenId rows currently stored, for
// assertions that a request which failed after session creation never got as
// far as InsertTokenID.
func (f *Fake) TokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}
