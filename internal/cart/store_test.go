package cart

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/naiyo-24/Mommynme/internal/domain"
	"github.com/naiyo-24/Mommynme/internal/pricing"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct {
	m            sync.RWMutex
	hydrateLines []domain.CartLine
	hydrateErr   error
	persistErr   error
	persisted    [][]domain.CartLine
}

func (m *mockAdapter) Hydrate(context.Context) ([]domain.CartLine, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.hydrateErr != nil {
		return nil, m.hydrateErr
	}
	return m.hydrateLines, nil
}

func (m *mockAdapter) Persist(_ context.Context, lines []domain.CartLine) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.persistErr != nil {
		return m.persistErr
	}
	m.persisted = append(m.persisted, lines)
	return nil
}

func (m *mockAdapter) lastPersisted() []domain.CartLine {
	m.m.RLock()
	defer m.m.RUnlock()
	if len(m.persisted) == 0 {
		return nil
	}
	return m.persisted[len(m.persisted)-1]
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func openStore(t *testing.T, adapter *mockAdapter) *Store {
	t.Helper()
	store := NewStore(adapter, testLogger())
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(store.Close)
	return store
}

func yogaMat() domain.CatalogItem {
	return domain.CatalogItem{
		ID:       "1",
		Name:     "Premium Yoga Mat",
		Category: "Fitness",
		Price:    100,
		Offer:    "10",
		Colors:   []string{"purple", "blue"},
	}
}

func earbuds() domain.CatalogItem {
	return domain.CatalogItem{ID: "2", Name: "Wireless Earbuds", Category: "Electronics", Price: 1799}
}

func TestAddItem_RepeatedSameIdentity_MergesIntoOneLine(t *testing.T) {
	store := openStore(t, &mockAdapter{})

	for i := 0; i < 3; i++ {
		store.AddItem(yogaMat(), "purple")
	}

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "purple", lines[0].SelectedColor)
}

func TestAddItem_DifferentColors_AreDistinctLines(t *testing.T) {
	store := openStore(t, &mockAdapter{})

	store.AddItem(yogaMat(), "purple")
	store.AddItem(yogaMat(), "blue")

	lines := store.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestAddItem_SnapshotsCatalogFields(t *testing.T) {
	store := openStore(t, &mockAdapter{})

	item := yogaMat()
	store.AddItem(item, "")

	// A later catalog price change must not reach the cart line.
	item.Price = 9999

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 100.0, lines[0].Item.Price)
}

func TestUpdateQuantity_ClampsBelowOne(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "")

	store.UpdateQuantity("1", 0)
	assert.Equal(t, 1, store.Lines()[0].Quantity)

	store.UpdateQuantity("1", -5)
	assert.Equal(t, 1, store.Lines()[0].Quantity)
}

func TestUpdateQuantity_UnknownID_NoOp(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "")

	store.UpdateQuantity("404", 7)

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestRemoveItem_DropsAllColorVariants(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "purple")
	store.AddItem(yogaMat(), "blue")
	store.AddItem(earbuds(), "")

	store.RemoveItem("1")

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "2", lines[0].Item.ID)
}

func TestRemoveItem_AbsentID_Idempotent(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "")

	store.RemoveItem("404")
	store.RemoveItem("404")

	assert.Len(t, store.Lines(), 1)
}

func TestRemoveThenAdd_ProducesFreshLine(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "purple")
	store.UpdateQuantity("1", 5)

	store.RemoveItem("1")
	store.AddItem(yogaMat(), "")

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Empty(t, lines[0].SelectedColor)
}

func TestUpdateColor_SetsColorOnMatchingLines(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "purple")

	store.UpdateColor("1", "blue")

	assert.Equal(t, "blue", store.Lines()[0].SelectedColor)
}

func TestClear_EmptiesCart(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	store.AddItem(yogaMat(), "")
	store.AddItem(earbuds(), "")

	store.Clear()

	assert.Empty(t, store.Lines())
	assert.Equal(t, 0, store.TotalItemCount())
}

func TestTotalItemCount_MatchesSumOfQuantities(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	rng := rand.New(rand.NewSource(1))

	items := []domain.CatalogItem{yogaMat(), earbuds(), {ID: "3", Name: "T-Shirt", Price: 899}}
	colors := []string{"", "red", "blue"}

	for step := 0; step < 200; step++ {
		switch rng.Intn(4) {
		case 0:
			store.AddItem(items[rng.Intn(len(items))], colors[rng.Intn(len(colors))])
		case 1:
			store.RemoveItem(fmt.Sprint(rng.Intn(4) + 1))
		case 2:
			store.UpdateQuantity(fmt.Sprint(rng.Intn(4)+1), rng.Intn(6)-2)
		case 3:
			store.UpdateColor(fmt.Sprint(rng.Intn(4)+1), colors[rng.Intn(len(colors))])
		}

		sum := 0
		for _, line := range store.Lines() {
			require.GreaterOrEqual(t, line.Quantity, 1)
			sum += line.Quantity
		}
		require.Equal(t, sum, store.TotalItemCount())
	}
}

func TestTotalPrice_OrderOfAddsDoesNotMatter(t *testing.T) {
	adds := []struct {
		item  domain.CatalogItem
		color string
	}{
		{yogaMat(), "purple"},
		{earbuds(), ""},
		{yogaMat(), "purple"},
		{yogaMat(), "blue"},
		{earbuds(), ""},
	}

	forward := openStore(t, &mockAdapter{})
	for _, a := range adds {
		forward.AddItem(a.item, a.color)
	}

	backward := openStore(t, &mockAdapter{})
	for i := len(adds) - 1; i >= 0; i-- {
		backward.AddItem(adds[i].item, adds[i].color)
	}

	assert.Equal(t, forward.TotalPrice(), backward.TotalPrice())
	assert.Equal(t, forward.TotalItemCount(), backward.TotalItemCount())
}

func TestTotals_SnapshotPricingScenario(t *testing.T) {
	store := openStore(t, &mockAdapter{})

	store.AddItem(yogaMat(), "purple")
	store.AddItem(yogaMat(), "purple")

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	// Total uses the snapshotted base price, not the discounted one.
	assert.Equal(t, 200.0, store.TotalPrice())
	assert.InDelta(t, 20.0, pricing.TotalSavings(lines), 1e-9)
}

func TestOpen_HydratesFromAdapter(t *testing.T) {
	adapter := &mockAdapter{
		hydrateLines: []domain.CartLine{{Item: yogaMat(), Quantity: 4, SelectedColor: "blue"}},
	}
	store := openStore(t, adapter)

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
}

func TestOpen_HydrationFailure_StartsEmptyAndReady(t *testing.T) {
	adapter := &mockAdapter{hydrateErr: fmt.Errorf("network down")}
	store := openStore(t, adapter)

	assert.Empty(t, store.Lines())

	// Still fully usable after the failed hydration.
	store.AddItem(yogaMat(), "")
	assert.Equal(t, 1, store.TotalItemCount())
}

func TestOpen_Twice_Fails(t *testing.T) {
	store := openStore(t, &mockAdapter{})
	require.ErrorIs(t, store.Open(context.Background()), ErrAlreadyOpen)
}

func TestMutationBeforeOpen_IsIgnored(t *testing.T) {
	store := NewStore(&mockAdapter{}, testLogger())

	store.AddItem(yogaMat(), "")

	require.NoError(t, store.Open(context.Background()))
	defer store.Close()
	assert.Empty(t, store.Lines())
}

func TestMutations_PersistLatestSnapshot(t *testing.T) {
	adapter := &mockAdapter{}
	store := openStore(t, adapter)

	store.AddItem(yogaMat(), "purple")
	store.AddItem(earbuds(), "")
	store.UpdateQuantity("2", 3)

	require.Eventually(t, func() bool {
		last := adapter.lastPersisted()
		if len(last) != 2 {
			return false
		}
		return last[1].Quantity == 3
	}, time.Second, 10*time.Millisecond, "final state was not persisted")
}

func TestPersistFailure_KeepsInMemoryState(t *testing.T) {
	adapter := &mockAdapter{persistErr: fmt.Errorf("storage down")}
	store := openStore(t, adapter)

	store.AddItem(yogaMat(), "")

	assert.Equal(t, 1, store.TotalItemCount())
}

func TestClose_FlushesFinalState(t *testing.T) {
	adapter := &mockAdapter{}
	store := NewStore(adapter, testLogger())
	require.NoError(t, store.Open(context.Background()))

	store.AddItem(yogaMat(), "")
	store.Close()

	last := adapter.lastPersisted()
	require.Len(t, last, 1)
	assert.Equal(t, "1", last[0].Item.ID)
}

func TestSubscribe_NotifiedOnEachMutation(t *testing.T) {
	store := openStore(t, &mockAdapter{})

	var (
		m     sync.Mutex
		calls int
	)
	store.Subscribe(func() {
		m.Lock()
		calls++
		m.Unlock()
	})

	store.AddItem(yogaMat(), "")
	store.UpdateQuantity("1", 3)
	store.RemoveItem("1")

	m.Lock()
	defer m.Unlock()
	assert.Equal(t, 3, calls)
}

func TestSubscribe_NoNotificationOnNoOp(t *testing.T) {
	store := openStore(t, &mockAdapter{})

	calls := 0
	store.Subscribe(func() { calls++ })

	store.RemoveItem("404")
	store.UpdateQuantity("404", 2)

	assert.Equal(t, 0, calls)
}
