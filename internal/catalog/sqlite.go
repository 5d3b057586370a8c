package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/naiyo-24/Mommynme/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteSupplier serves the catalog from a local seeded database, for
// development and for running the storefront without the commerce API.
type SQLiteSupplier struct {
	db *sql.DB
}

func NewSQLiteSupplier(dbPath string) (*SQLiteSupplier, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteSupplier{db: db}, nil
}

func (s *SQLiteSupplier) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteSupplier) FetchCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	query := `
		SELECT id, name, description, category, price, image, offer, stock_quantity, colors, created_at
		FROM products
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var (
			item      domain.CatalogItem
			colors    string
			createdAt string
		)
		err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.Category,
			&item.Price,
			&item.Image,
			&item.Offer,
			&item.StockQuantity,
			&colors,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		if colors != "" {
			item.Colors = strings.Split(colors, ",")
		}
		if createdAt != "" {
			item.CreatedAt, err = time.Parse("2006-01-02", createdAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse created_at for product %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (s *SQLiteSupplier) Close() error {
	return s.db.Close()
}
