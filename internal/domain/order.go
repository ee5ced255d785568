package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус заказа. Через API статус задаётся один раз при создании.
type OrderStatus string

const (
	// OrderStatusPending: статус по умолчанию для нового заказа.
	OrderStatusPending OrderStatus = "pending"
)

// OrderItem: снимок позиции на момент оформления заказа.
type OrderItem struct {
	ProductID string
	Quantity  int
	// Price: цена за единицу на момент заказа, как её передал клиент.
	Price decimal.Decimal
}

// Order агрегирует оформленный заказ. Позиции не связаны с корзиной после создания.
type Order struct {
	ID         string
	UserID     string
	Items      []OrderItem
	TotalPrice decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
// Итоговая сумма с позициями не сверяется: клиентскому totalPrice доверяем как есть.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if CanonicalID(o.UserID) == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalPrice.IsNegative() {
		errs = append(errs, ErrTotalPriceNegative)
	}

	for _, item := range o.Items {
		if CanonicalID(item.ProductID) == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}

// ItemsTotal считает сумму quantity * price по позициям.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
