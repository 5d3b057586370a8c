// Package cart owns the in-memory cart state for one storefront session and
// is its sole mutator. Mutations apply immediately; a background writer
// mirrors the latest full snapshot to the persistence adapter, best-effort.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/naiyo-24/Mommynme/internal/domain"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyOpen is returned when Open is called twice on one store.
var ErrAlreadyOpen = errors.New("cart store already opened")

const persistTimeout = 5 * time.Second

// Adapter loads and saves the full cart line list.
// Consumers define this interface, not the persistence implementation.
type Adapter interface {
	Hydrate(ctx context.Context) ([]domain.CartLine, error)
	Persist(ctx context.Context, lines []domain.CartLine) error
}

type state int

const (
	stateUninitialized state = iota
	stateHydrating
	stateReady
)

type Store struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	state   state
	subs    []func()
	adapter Adapter
	log     *logrus.Entry

	dirty     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewStore(adapter Adapter, log *logrus.Entry) *Store {
	return &Store{
		adapter: adapter,
		log:     log,
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Open hydrates the store and starts the background writer. A hydration
// failure is logged and degrades to an empty cart; the store still becomes
// ready and operates in-memory for the rest of the session.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateUninitialized {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = stateHydrating
	s.mu.Unlock()

	lines, err := s.adapter.Hydrate(ctx)
	if err != nil {
		s.log.WithError(err).Warn("cart hydration failed, starting empty")
		lines = nil
	}

	s.mu.Lock()
	s.lines = lines
	s.state = stateReady
	s.mu.Unlock()

	s.wg.Add(1)
	go s.writeLoop()
	return nil
}

// Close stops the writer after flushing the final state.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// Subscribe registers fn to run after every mutation. Used by anything that
// re-renders off cart state.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// AddItem puts a catalog item in the cart, snapshotting its fields. An item
// already present under the same (id, color) line identity has its quantity
// bumped by one instead of gaining a duplicate line.
func (s *Store) AddItem(item domain.CatalogItem, color string) {
	s.mutate("add item", func() bool {
		for i := range s.lines {
			if s.lines[i].Matches(item.ID, color) {
				s.lines[i].Quantity++
				return true
			}
		}
		s.lines = append(s.lines, domain.CartLine{
			Item:          item,
			Quantity:      1,
			SelectedColor: color,
		})
		return true
	})
}

// RemoveItem drops every line with the given item id, whatever its selected
// color. Removing an absent id is a no-op.
func (s *Store) RemoveItem(id string) {
	s.mutate("remove item", func() bool {
		kept := s.lines[:0]
		for _, line := range s.lines {
			if line.Item.ID != id {
				kept = append(kept, line)
			}
		}
		changed := len(kept) != len(s.lines)
		s.lines = kept
		return changed
	})
}

// UpdateQuantity sets the quantity, clamped to at least 1, on every line
// with the given item id. An absent id is a no-op.
func (s *Store) UpdateQuantity(id string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	s.mutate("update quantity", func() bool {
		changed := false
		for i := range s.lines {
			if s.lines[i].Item.ID == id {
				s.lines[i].Quantity = quantity
				changed = true
			}
		}
		return changed
	})
}

// UpdateColor sets the selected color on every line with the given item id.
// A collision with an existing (id, color) line is left as two lines, the
// same way the storefront has always behaved.
func (s *Store) UpdateColor(id, color string) {
	s.mutate("update color", func() bool {
		changed := false
		for i := range s.lines {
			if s.lines[i].Item.ID == id {
				s.lines[i].SelectedColor = color
				changed = true
			}
		}
		return changed
	})
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.mutate("clear", func() bool {
		s.lines = nil
		return true
	})
}

// Lines returns a copy of the current line list in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// TotalItemCount is the sum of quantities across all lines.
func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice sums price times quantity over all lines, using each line's
// snapshotted base price.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, line := range s.lines {
		total += line.Subtotal()
	}
	return total
}

// mutate runs fn under the lock, then schedules a persistence write and
// notifies subscribers if anything changed. Mutations before hydration
// completes are rejected: the hydrated state would silently overwrite them.
func (s *Store) mutate(op string, fn func() bool) {
	s.mu.Lock()
	if s.state != stateReady {
		s.mu.Unlock()
		s.log.WithField("op", op).Warn("cart mutation before hydration completed, ignored")
		return
	}
	changed := fn()
	var subs []func()
	if changed {
		subs = append(subs, s.subs...)
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.markDirty()
	for _, fn := range subs {
		fn()
	}
}

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// writeLoop persists the newest snapshot whenever the state is dirty.
// The buffered dirty channel coalesces bursts of mutations, and because the
// loop always re-reads the current lines, the last write before any idle
// period reflects the final state. Failures are logged and swallowed; the
// in-memory cart stays authoritative.
func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			select {
			case <-s.dirty:
				s.flush()
			default:
			}
			return
		case <-s.dirty:
			s.flush()
		}
	}
}

func (s *Store) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.adapter.Persist(ctx, s.Lines()); err != nil {
		s.log.WithError(err).Warn("failed to persist cart")
	}
}
