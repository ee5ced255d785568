package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	return domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: "P1", Quantity: 5, Price: decimal.RequireFromString("9.99")},
		},
		TotalPrice: decimal.RequireFromString("49.95"),
		Status:     domain.OrderStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no user",
			mut:  func(o *domain.Order) { o.UserID = "  " },
			want: domain.ErrUserIDRequired,
		},
		{
			name: "no items",
			mut:  func(o *domain.Order) { o.Items = nil },
			want: domain.ErrItemsRequired,
		},
		{
			name: "negative total",
			mut:  func(o *domain.Order) { o.TotalPrice = decimal.NewFromInt(-1) },
			want: domain.ErrTotalPriceNegative,
		},
		{
			name: "zero quantity",
			mut:  func(o *domain.Order) { o.Items[0].Quantity = 0 },
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "negative price",
			mut:  func(o *domain.Order) { o.Items[0].Price = decimal.NewFromFloat(-0.01) },
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "missing product",
			mut:  func(o *domain.Order) { o.Items[0].ProductID = "" },
			want: domain.ErrProductIDRequired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestOrderValidateInvariants_TotalMismatchAllowed(t *testing.T) {
	order := makeOrder()
	order.TotalPrice = decimal.NewFromInt(1)

	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("total mismatch must not be a validation error, got %v", errs)
	}
}

func TestOrderItemsTotal(t *testing.T) {
	order := makeOrder()
	order.Items = append(order.Items, domain.OrderItem{
		ProductID: "P2",
		Quantity:  2,
		Price:     decimal.RequireFromString("0.50"),
	})

	got := order.ItemsTotal()
	want := decimal.RequireFromString("50.95")
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
