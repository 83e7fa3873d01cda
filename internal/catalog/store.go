package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no product exists for a SKU.
var ErrNotFound = errors.New("product not found")

const defaultMaxScan = 500

type Store struct {
	pool    *pgxpool.Pool
	maxScan int
	log     *slog.Logger
}

func NewStore(pool *pgxpool.Pool, maxScan int, log *slog.Logger) *Store {
	if maxScan <= 0 {
		maxScan = defaultMaxScan
	}
	return &Store{
		pool:    pool,
		maxScan: maxScan,
		log:     log.With(slog.String("service", "catalog")),
	}
}

const productColumns = `sku, name, description, images, price, stock, active, tags, created_at, updated_at`

func (s *Store) GetBySKU(ctx context.Context, sku string) (Product, error) {
	if s.pool == nil {
		return Product{}, fmt.Errorf("catalog pool not configured")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = $1`,
		strings.TrimSpace(sku))
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListActive returns active products, newest first, capped by the
// configured scan limit. Resolution filters in memory; the fuzzy,
// diacritic-insensitive matching does not map onto SQL predicates.
func (s *Store) ListActive(ctx context.Context) ([]Product, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("catalog pool not configured")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY created_at DESC LIMIT $1`,
		s.maxScan)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	items := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		items = append(items, product)
	}
	return items, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		product     Product
		description *string
	)
	err := row.Scan(
		&product.SKU,
		&product.Name,
		&description,
		&product.Images,
		&product.Price,
		&product.Stock,
		&product.Active,
		&product.Tags,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return Product{}, err
	}
	if description != nil {
		product.Description = strings.TrimSpace(*description)
	}
	if product.Images == nil {
		product.Images = []Image{}
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}
	return product, nil
}
