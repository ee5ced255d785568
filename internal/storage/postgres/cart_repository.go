package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// cartRepository хранит позиции корзины построчно в cart_items.
// Мутации сериализуются блокировкой строки пользователя (SELECT ... FOR UPDATE),
// поэтому параллельные добавления одного товара не теряются.
type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *cartRepository) Items(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	userID = domain.CanonicalID(userID)
	if err := ensureUser(ctx, r.db, userID, false); err != nil {
		return nil, err
	}
	return loadCart(ctx, r.db, userID)
}

func (r *cartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) (cart domain.Cart, err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	userID = domain.CanonicalID(userID)
	productID = domain.CanonicalID(productID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if err = ensureUser(ctx, tx, userID, true); err != nil {
		return nil, err
	}

	current, err := loadCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := current.Add(productID, quantity)
	if err != nil {
		return nil, err
	}

	_, existed := current.Find(productID)
	line, kept := updated.Find(productID)
	switch {
	case !kept:
		_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	case existed:
		_, err = tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = $3
			WHERE user_id = $1 AND product_id = $2
		`, userID, productID, line.Quantity)
	default:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity)
			VALUES ($1,$2,$3)
		`, userID, productID, line.Quantity)
	}
	if err != nil {
		if rejected := rejectedInput(err); rejected != nil {
			return nil, rejected
		}
		return nil, fmt.Errorf("write cart item: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add cart item: %w", err)
	}
	return updated, nil
}

func (r *cartRepository) RemoveItem(ctx context.Context, userID, productID string) (cart domain.Cart, err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	userID = domain.CanonicalID(userID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if err = ensureUser(ctx, tx, userID, true); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2
	`, userID, domain.CanonicalID(productID)); err != nil {
		return nil, fmt.Errorf("delete cart item: %w", err)
	}

	cart, err = loadCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit remove cart item: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	userID = domain.CanonicalID(userID)
	if err := ensureUser(ctx, r.db, userID, false); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func ensureUser(ctx context.Context, q queryer, userID string, lock bool) error {
	query := `SELECT id FROM users WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var id string
	if err := q.QueryRowContext(ctx, query, userID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("check user exists: %w", err)
	}
	return nil
}

func loadCart(ctx context.Context, q queryer, userID string) (domain.Cart, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	cart := domain.Cart{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart = append(cart, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
