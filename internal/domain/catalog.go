package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrItemIDRequired   = errors.New("catalog item id is required")
	ErrItemNameRequired = errors.New("catalog item name is required")
	ErrItemPriceInvalid = errors.New("catalog item price must not be negative")
	ErrItemStockInvalid = errors.New("catalog item stock quantity must not be negative")
)

// CatalogItem is the validated, strongly typed form of a product supplied by
// the external catalog. Offer stays string-encoded ("15" means 15% off) the
// way the upstream API ships it; pricing parses it exactly once.
type CatalogItem struct {
	ID            string    `json:"id" bson:"id"`
	Name          string    `json:"name" bson:"name"`
	Description   string    `json:"description" bson:"description"`
	Category      string    `json:"category" bson:"category"`
	Price         float64   `json:"price" bson:"price"`
	Image         string    `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	Offer         string    `json:"offer,omitempty" bson:"offer,omitempty"`
	StockQuantity int       `json:"quantity" bson:"stock_quantity"`
	Colors        []string  `json:"colors,omitempty" bson:"colors,omitempty"`
}

// rawCatalogItem mirrors the loose upstream payload before validation.
// The API sends created_at either as RFC3339 or as a bare date.
type rawCatalogItem struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Price         float64  `json:"price"`
	Image         string   `json:"image"`
	CreatedAt     string   `json:"created_at"`
	Offer         string   `json:"offer"`
	StockQuantity int      `json:"quantity"`
	Colors        []string `json:"colors"`
}

// ParseCatalogItems decodes and validates a raw catalog payload. Validation
// happens here at the supplier boundary so untyped values never reach the
// cart or pricing code.
func ParseCatalogItems(data []byte) ([]CatalogItem, error) {
	var raw []rawCatalogItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog payload: %w", err)
	}

	items := make([]CatalogItem, 0, len(raw))
	for i, r := range raw {
		item, err := parseCatalogItem(r)
		if err != nil {
			return nil, fmt.Errorf("catalog item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func parseCatalogItem(r rawCatalogItem) (CatalogItem, error) {
	if r.ID == "" {
		return CatalogItem{}, ErrItemIDRequired
	}
	if r.Name == "" {
		return CatalogItem{}, ErrItemNameRequired
	}
	if r.Price < 0 {
		return CatalogItem{}, ErrItemPriceInvalid
	}
	if r.StockQuantity < 0 {
		return CatalogItem{}, ErrItemStockInvalid
	}

	createdAt, err := parseCreatedAt(r.CreatedAt)
	if err != nil {
		return CatalogItem{}, err
	}

	return CatalogItem{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Category:      r.Category,
		Price:         r.Price,
		Image:         r.Image,
		CreatedAt:     createdAt,
		Offer:         r.Offer,
		StockQuantity: r.StockQuantity,
		Colors:        r.Colors,
	}, nil
}

func parseCreatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized created_at value %q", s)
}
