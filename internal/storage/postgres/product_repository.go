package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

const productColumns = `id, name, description, price_usd, price_inr, category, image, stock, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceUSD, &p.PriceINR,
		&p.Category, &p.Image, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product.ID = domain.CanonicalID(product.ID)
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		product.ID, product.Name, product.Description, product.PriceUSD, product.PriceINR,
		product.Category, product.Image, product.Stock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if rejected := rejectedInput(err); rejected != nil {
			return domain.Product{}, rejected
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}

	return product, nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, domain.CanonicalID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

func (r *productRepository) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	unique := make([]any, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = domain.CanonicalID(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	placeholders := make([]string, len(unique))
	for i := range unique {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, unique...)
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}
	return collectProducts(rows)
}

func (r *productRepository) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// NULL-аргумент означает "оставить поле как есть".
	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price_usd = COALESCE($4, price_usd),
		    price_inr = COALESCE($5, price_inr),
		    category = COALESCE($6, category),
		    image = COALESCE($7, image),
		    stock = COALESCE($8, stock),
		    updated_at = $9
		WHERE id = $1
		RETURNING `+productColumns,
		domain.CanonicalID(id),
		nullString(patch.Name), nullString(patch.Description),
		nullDecimal(patch.PriceUSD), nullDecimal(patch.PriceINR),
		nullString(patch.Category), nullString(patch.Image),
		nullInt(patch.Stock),
		time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		if rejected := rejectedInput(err); rejected != nil {
			return domain.Product{}, rejected
		}
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, domain.CanonicalID(id)); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

var _ domain.ProductRepository = (*productRepository)(nil)
