package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naiyo-24/Mommynme/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogPayload = `[
	{"id":"1","name":"Premium Yoga Mat","category":"Fitness","price":2499,"offer":"15","quantity":20,"created_at":"2023-06-15"},
	{"id":"2","name":"Wireless Earbuds","category":"Electronics","price":1799,"quantity":15,"created_at":"2023-07-10"}
]`

func TestClient_FetchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		w.Write([]byte(catalogPayload))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	items, err := client.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Premium Yoga Mat", items[0].Name)
	assert.Equal(t, "15", items[0].Offer)
}

func TestClient_FetchCatalog_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.FetchCatalog(context.Background())
	require.ErrorContains(t, err, "status 500")
}

func TestClient_FetchCatalog_InvalidPayloadRejectedAtBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"no id","price":1,"quantity":1}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.FetchCatalog(context.Background())
	require.ErrorIs(t, err, domain.ErrItemIDRequired)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	for i := 0; i < 10; i++ {
		_, err := client.FetchCatalog(context.Background())
		require.Error(t, err)
	}

	// After five consecutive failures the breaker stops hitting upstream.
	assert.Equal(t, int64(5), hits.Load())
}

func TestClient_CoalescedFetchSurvivesCallerCancel(t *testing.T) {
	var hits atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		w.Write([]byte(catalogPayload))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	impatientCtx, cancel := context.WithCancel(context.Background())
	impatientErr := make(chan error, 1)
	go func() {
		_, err := client.FetchCatalog(impatientCtx)
		impatientErr <- err
	}()
	<-started

	patientItems := make(chan []domain.CatalogItem, 1)
	patientErr := make(chan error, 1)
	go func() {
		items, err := client.FetchCatalog(context.Background())
		patientItems <- items
		patientErr <- err
	}()

	// Let the second caller join the in-flight fetch, then cancel the first
	// caller before the upstream answers.
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)

	require.ErrorIs(t, <-impatientErr, context.Canceled)
	require.NoError(t, <-patientErr)
	require.Len(t, <-patientItems, 2)
	assert.Equal(t, int64(1), hits.Load())
}

func TestSortNewest(t *testing.T) {
	items := []domain.CatalogItem{
		{ID: "old", CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "new", CreatedAt: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "mid", CreatedAt: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	SortNewest(items)

	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
	assert.Equal(t, "old", items[2].ID)
}
