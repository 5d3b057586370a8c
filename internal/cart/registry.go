package cart

import (
	"context"
	"sync"

	"github.com/naiyo-24/Mommynme/internal/session"
	"golang.org/x/sync/singleflight"
)

// Session bundles the cart store and auth gate owned by one storefront
// session.
type Session struct {
	Store *Store
	Gate  *session.Gate
}

// OpenFunc builds and hydrates the Session for a session id. The registry
// owns the result for the rest of the process lifetime.
type OpenFunc func(ctx context.Context, sessionID string) (*Session, error)

// Registry is the composition root's map of live sessions. Stores are
// created lazily on first use; singleflight keeps concurrent requests for
// the same fresh session from hydrating twice.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	open     OpenFunc
	sfg      singleflight.Group
}

func NewRegistry(open OpenFunc) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		open:     open,
	}
}

// Get returns the session, creating and hydrating it on first use.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return sess, nil
	}

	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		r.mu.RLock()
		sess, ok := r.sessions[sessionID]
		r.mu.RUnlock()
		if ok {
			return sess, nil
		}

		sess, err := r.open(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[sessionID] = sess
		r.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// LookupGate finds the gate for a live session without creating one. Used by
// the auth event consumer.
func (r *Registry) LookupGate(sessionID string) (*session.Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.Gate, true
}

// Close flushes and stops every live store.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.sessions {
		sess.Store.Close()
	}
}
