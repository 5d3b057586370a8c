// Package catalog supplies the read-only product listing the storefront
// browses and the pricing code recommends from. The storefront never writes
// to it.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/naiyo-24/Mommynme/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

type Supplier interface {
	FetchCatalog(ctx context.Context) ([]domain.CatalogItem, error)
}

// Client fetches the catalog from the external commerce API. The circuit
// breaker keeps a flapping upstream from stalling every page render, and
// singleflight collapses concurrent fetches into one request.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]domain.CatalogItem]
	sfg     singleflight.Group
}

func NewClient(baseURL string) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]domain.CatalogItem](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

func (c *Client) FetchCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	// The fetch runs detached so a cancelled caller cannot fail the other
	// callers sharing the flight. The HTTP client timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.sfg.Do("catalog", func() (interface{}, error) {
		return c.breaker.Execute(func() ([]domain.CatalogItem, error) {
			return c.fetch(fetchCtx)
		})
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.([]domain.CatalogItem), nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.CatalogItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	return domain.ParseCatalogItems(body)
}

// SortNewest orders items newest first, for the "new arrivals" listing.
func SortNewest(items []domain.CatalogItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
