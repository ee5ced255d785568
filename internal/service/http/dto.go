package httpsvc

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// createProductRequest поля нового товара. Диапазоны значений не проверяются.
type createProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	PriceINR    decimal.Decimal `json:"price_inr"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Stock       int             `json:"stock"`
}

func (r createProductRequest) toDomain() domain.Product {
	return domain.Product{
		Name:        r.Name,
		Description: r.Description,
		PriceUSD:    r.PriceUSD,
		PriceINR:    r.PriceINR,
		Category:    r.Category,
		Image:       r.Image,
		Stock:       r.Stock,
	}
}

// updateProductRequest частичное обновление: отсутствующее или null поле не меняется.
type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	PriceUSD    *decimal.Decimal `json:"price_usd"`
	PriceINR    *decimal.Decimal `json:"price_inr"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
	Stock       *int             `json:"stock"`
}

func (r updateProductRequest) toPatch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		PriceUSD:    r.PriceUSD,
		PriceINR:    r.PriceINR,
		Category:    r.Category,
		Image:       r.Image,
		Stock:       r.Stock,
	}
}

type productResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	PriceUSD    json.Number `json:"price_usd"`
	PriceINR    json.Number `json:"price_inr"`
	Category    string      `json:"category"`
	Image       string      `json:"image"`
	Stock       int         `json:"stock"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func newProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceUSD:    number(p.PriceUSD),
		PriceINR:    number(p.PriceINR),
		Category:    p.Category,
		Image:       p.Image,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newProductsResponse(products []domain.Product) []productResponse {
	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, newProductResponse(p))
	}
	return result
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func newCartResponse(cart domain.Cart) []cartItemResponse {
	result := make([]cartItemResponse, 0, len(cart))
	for _, line := range cart {
		result = append(result, cartItemResponse{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return result
}

type expandedCartItemResponse struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *productResponse `json:"product"`
}

func newExpandedCartResponse(lines []domain.ExpandedCartLine) []expandedCartItemResponse {
	result := make([]expandedCartItemResponse, 0, len(lines))
	for _, line := range lines {
		item := expandedCartItemResponse{ProductID: line.ProductID, Quantity: line.Quantity}
		if line.Product != nil {
			product := newProductResponse(*line.Product)
			item.Product = &product
		}
		result = append(result, item)
	}
	return result
}

type orderItemPayload struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type checkoutRequest struct {
	UserID     string             `json:"userId"`
	Items      []orderItemPayload `json:"items"`
	TotalPrice *decimal.Decimal   `json:"totalPrice"`
}

func (r checkoutRequest) items() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return items
}

type orderItemResponse struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	UserID     string              `json:"userId"`
	Items      []orderItemResponse `json:"items"`
	TotalPrice json.Number         `json:"totalPrice"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
}

func newOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{ProductID: item.ProductID, Quantity: item.Quantity, Price: number(item.Price)})
	}
	return orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Items:      items,
		TotalPrice: number(o.TotalPrice),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
	}
}

func newOrdersResponse(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, newOrderResponse(o))
	}
	return result
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}
