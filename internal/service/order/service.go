// Package order оформляет заказы из корзины и отдаёт историю заказов.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/outbox"
)

// UserLookup проверяет существование покупателя.
type UserLookup interface {
	Get(ctx context.Context, id string) (domain.User, error)
}

// CartClearer очищает корзину после оформления.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// CheckoutRequest данные оформления заказа.
type CheckoutRequest struct {
	UserID string
	Items  []domain.OrderItem
	// TotalPrice nil, если клиент не передал сумму.
	TotalPrice *decimal.Decimal
}

// Service заказы.
type Service struct {
	orders  domain.OrderRepository
	users   UserLookup
	carts   CartClearer
	events  *outbox.Emitter
	metrics *metrics.ShopMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewService конструирует сервис с зависимостями.
func NewService(
	orders domain.OrderRepository,
	users UserLookup,
	carts CartClearer,
	events *outbox.Emitter,
	m *metrics.ShopMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		orders:  orders,
		users:   users,
		carts:   carts,
		events:  events,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

type orderItemEvent struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderCreatedEvent struct {
	OrderID    string           `json:"orderId"`
	UserID     string           `json:"userId"`
	Items      []orderItemEvent `json:"items"`
	TotalPrice decimal.Decimal  `json:"totalPrice"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func newOrderCreatedEvent(o domain.Order) orderCreatedEvent {
	items := make([]orderItemEvent, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemEvent{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return orderCreatedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      items,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
	}
}

// Checkout создаёт заказ в статусе pending и очищает корзину.
// Создание заказа и очистка корзины не атомарны: при ошибке очистки
// заказ остаётся сохранённым, а вызывающий получает ошибку.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (domain.Order, error) {
	order := domain.Order{
		UserID: domain.CanonicalID(req.UserID),
		Items:  make([]domain.OrderItem, 0, len(req.Items)),
		Status: domain.OrderStatusPending,
	}
	for _, item := range req.Items {
		item.ProductID = domain.CanonicalID(item.ProductID)
		order.Items = append(order.Items, item)
	}

	invalid := order.ValidateInvariants()
	if req.TotalPrice == nil {
		invalid = append(invalid, domain.ErrTotalPriceRequired)
	} else {
		order.TotalPrice = *req.TotalPrice
	}
	if err := domain.NewValidationError(invalid...); err != nil {
		s.metrics.RecordCheckoutFailure(metrics.CheckoutStepValidate)
		return domain.Order{}, err
	}

	if _, err := s.users.Get(ctx, order.UserID); err != nil {
		s.metrics.RecordCheckoutFailure(metrics.CheckoutStepLookup)
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Order{}, domain.NewValidationError(err)
		}
		return domain.Order{}, fmt.Errorf("load user %s: %w", order.UserID, err)
	}

	logger := s.logger.WithField("user_id", order.UserID)
	if itemsTotal := order.ItemsTotal(); !itemsTotal.Equal(order.TotalPrice) {
		s.metrics.RecordTotalMismatch()
		logger.WithFields(log.Fields{
			"total_price": order.TotalPrice.String(),
			"items_total": itemsTotal.String(),
		}).Warn("order total does not match sum of items")
	}

	order.CreatedAt = s.now().UTC()
	created, err := s.orders.Create(ctx, order)
	if err != nil {
		s.metrics.RecordCheckoutFailure(metrics.CheckoutStepCreate)
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.metrics.RecordOrderCreated()
	logger = logger.WithField("order_id", created.ID)
	logger.Info("order created")

	s.events.Emit(ctx, domain.AggregateOrder, created.ID, domain.EventOrderCreated, newOrderCreatedEvent(created))

	if err := s.carts.Clear(ctx, order.UserID); err != nil {
		s.metrics.RecordCheckoutFailure(metrics.CheckoutStepClearCart)
		logger.WithError(err).Error("order persisted but cart was not cleared")
		return domain.Order{}, fmt.Errorf("clear cart after order %s: %w", created.ID, err)
	}

	return created, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
// Для неизвестного пользователя возвращается пустой список.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, domain.CanonicalID(userID))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
