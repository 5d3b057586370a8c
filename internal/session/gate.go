// Package session answers "is there a signed-in identity right now" for one
// storefront session. The gate starts Unknown and stays that way until the
// first identity check or auth event resolves it; consumers must not pick a
// persistence backend while it is Unknown.
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// IdentityFunc looks up the current identity from the auth supplier. It
// returns an empty user id when nobody is signed in.
type IdentityFunc func(ctx context.Context) (string, error)

type Gate struct {
	mu     sync.RWMutex
	state  State
	userID string

	resolved  chan struct{}
	resolveMu sync.Once

	log *logrus.Entry
}

func NewGate(log *logrus.Entry) *Gate {
	return &Gate{
		state:    StateUnknown,
		resolved: make(chan struct{}),
		log:      log,
	}
}

// Check runs the initial identity lookup. A failed check resolves to
// anonymous, never to an error: the storefront stays usable without an
// account.
func (g *Gate) Check(ctx context.Context, identity IdentityFunc) {
	userID, err := identity(ctx)
	if err != nil {
		g.log.WithError(err).Warn("identity check failed, treating session as anonymous")
		g.SetAnonymous()
		return
	}
	if userID == "" {
		g.SetAnonymous()
		return
	}
	g.SetAuthenticated(userID)
}

// SetAuthenticated flips the gate to the signed-in state for the given user.
func (g *Gate) SetAuthenticated(userID string) {
	g.mu.Lock()
	g.state = StateAuthenticated
	g.userID = userID
	g.mu.Unlock()
	g.markResolved()
}

// SetAnonymous flips the gate to the signed-out state.
func (g *Gate) SetAnonymous() {
	g.mu.Lock()
	g.state = StateAnonymous
	g.userID = ""
	g.mu.Unlock()
	g.markResolved()
}

// Current returns the gate's state and, when authenticated, the user id.
func (g *Gate) Current() (State, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.userID
}

// Wait blocks until the gate has resolved past Unknown, then returns the
// state at that moment.
func (g *Gate) Wait(ctx context.Context) (State, string, error) {
	select {
	case <-g.resolved:
		state, userID := g.Current()
		return state, userID, nil
	case <-ctx.Done():
		return StateUnknown, "", ctx.Err()
	}
}

func (g *Gate) markResolved() {
	g.resolveMu.Do(func() {
		close(g.resolved)
	})
}
