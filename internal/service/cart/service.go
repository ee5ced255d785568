// Package cart реализует операции над корзиной пользователя.
package cart

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
)

// Операции корзины для метрик.
const (
	opAdd    = "add"
	opRemove = "remove"
	opClear  = "clear"
)

// ProductLookup загружает карточки товаров для раскрытия корзины.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// Service корзина покупателя.
type Service struct {
	carts    domain.CartRepository
	products ProductLookup
	metrics  *metrics.ShopMetrics
	logger   *log.Entry
}

// NewService создаёт сервис корзины.
func NewService(carts domain.CartRepository, products ProductLookup, m *metrics.ShopMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart-service")
	}
	return &Service{
		carts:    carts,
		products: products,
		metrics:  m,
		logger:   logger,
	}
}

// GetCart возвращает корзину с карточками товаров в порядке добавления.
// Для удалённого из каталога товара Product равен nil.
func (s *Service) GetCart(ctx context.Context, userID string) ([]domain.ExpandedCartLine, error) {
	cart, err := s.carts.Items(ctx, userID)
	if err != nil {
		return nil, err
	}

	products := map[string]domain.Product{}
	if len(cart) > 0 {
		products, err = s.products.GetMany(ctx, cart.ProductIDs())
		if err != nil {
			return nil, fmt.Errorf("expand cart: %w", err)
		}
	}

	expanded := make([]domain.ExpandedCartLine, 0, len(cart))
	for _, line := range cart {
		item := domain.ExpandedCartLine{CartLine: line}
		if product, ok := products[domain.CanonicalID(line.ProductID)]; ok {
			item.Product = &product
		}
		expanded = append(expanded, item)
	}
	return expanded, nil
}

// CheckUser сообщает ErrUserNotFound, если пользователя нет.
func (s *Service) CheckUser(ctx context.Context, userID string) error {
	_, err := s.carts.Items(ctx, userID)
	return err
}

// AddItem прибавляет quantity к позиции productID и возвращает корзину без раскрытия.
// Неизвестный пользователь проверяется раньше, чем тело запроса.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error) {
	var invalid []error
	if domain.CanonicalID(productID) == "" {
		invalid = append(invalid, domain.ErrProductIDRequired)
	}
	if quantity == 0 {
		invalid = append(invalid, domain.ErrQuantityRequired)
	}
	if len(invalid) > 0 {
		if err := s.CheckUser(ctx, userID); err != nil {
			return nil, err
		}
		return nil, domain.NewValidationError(invalid...)
	}

	cart, err := s.carts.AddItem(ctx, userID, productID, quantity)
	if err != nil {
		if errors.Is(err, domain.ErrCartQuantityInvalid) {
			return nil, domain.NewValidationError(err)
		}
		return nil, err
	}

	s.metrics.RecordCartMutation(opAdd)
	s.logger.WithFields(log.Fields{
		"user_id":    domain.CanonicalID(userID),
		"product_id": domain.CanonicalID(productID),
		"quantity":   quantity,
	}).Debug("cart item added")
	return cart, nil
}

// RemoveItem удаляет все позиции productID. Повторное удаление не ошибка.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	cart, err := s.carts.RemoveItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCartMutation(opRemove)
	return cart, nil
}

// Clear очищает корзину пользователя.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return err
	}
	s.metrics.RecordCartMutation(opClear)
	return nil
}
