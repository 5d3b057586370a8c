// Package persistence mirrors cart state to a storage backend chosen by the
// session's auth state: the per-user record store when signed in, the
// session-scoped key-value storage otherwise. Persistence is best-effort;
// the in-memory cart stays authoritative whatever happens here.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/naiyo-24/Mommynme/internal/domain"
	"github.com/naiyo-24/Mommynme/internal/session"
	"github.com/sirupsen/logrus"
)

// ErrNotFound marks the expected "no record yet" case. Callers treat it as
// an empty cart, not a failure.
var ErrNotFound = errors.New("cart record not found")

// cartKey is the well-known key the serialized cart lives under in
// session-local storage.
const cartKey = "cartItems"

// RecordStore is the remote per-user cart record, upsert keyed by user id.
type RecordStore interface {
	Get(ctx context.Context, userID string) ([]domain.CartLine, error)
	Upsert(ctx context.Context, userID string, lines []domain.CartLine) error
}

// LocalStorage is the anonymous-session fallback: a plain string key-value
// store scoped to one session.
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type Adapter struct {
	gate   *session.Gate
	remote RecordStore
	local  LocalStorage
	log    *logrus.Entry
}

func NewAdapter(gate *session.Gate, remote RecordStore, local LocalStorage, log *logrus.Entry) *Adapter {
	return &Adapter{gate: gate, remote: remote, local: local, log: log}
}

// Hydrate loads the persisted cart for this session. It waits for the gate
// to resolve past Unknown before picking a backend. A missing record and an
// unparsable local value both resolve to an empty cart.
func (a *Adapter) Hydrate(ctx context.Context) ([]domain.CartLine, error) {
	state, userID, err := a.gate.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth state never resolved: %w", err)
	}

	if state == session.StateAuthenticated {
		lines, err := a.remote.Get(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cart record: %w", err)
		}
		return lines, nil
	}

	raw, err := a.local.Get(ctx, cartKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local cart: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		a.log.WithError(err).Warn("stored cart is unparsable, starting empty")
		return nil, nil
	}
	return lines, nil
}

// Persist writes the full line list to whichever backend the gate currently
// points at. The caller logs and swallows any error.
func (a *Adapter) Persist(ctx context.Context, lines []domain.CartLine) error {
	state, userID := a.gate.Current()

	switch state {
	case session.StateAuthenticated:
		if err := a.remote.Upsert(ctx, userID, lines); err != nil {
			return fmt.Errorf("failed to upsert cart record: %w", err)
		}
		return nil
	case session.StateAnonymous:
		data, err := json.Marshal(lines)
		if err != nil {
			return fmt.Errorf("failed to serialize cart: %w", err)
		}
		if err := a.local.Set(ctx, cartKey, string(data)); err != nil {
			return fmt.Errorf("failed to write local cart: %w", err)
		}
		return nil
	default:
		return errors.New("auth state unknown, refusing to pick a backend")
	}
}
