package domain

import (
	"errors"
	"strings"
)

var (
	// ErrProductNotFound возвращается, если товар не найден (в том числе при некорректном id).
	ErrProductNotFound = errors.New("product not found")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken: пользователь с таким email уже зарегистрирован.
	ErrEmailTaken = errors.New("email already registered")
	// Ошибка отсутствующего email при регистрации.
	ErrEmailRequired = errors.New("email is required")
	// Ошибка отсутствующего пароля при регистрации.
	ErrPasswordRequired = errors.New("password is required")
	// Ошибка слишком длинного пароля: bcrypt учитывает не больше 72 байт.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// Ошибка отсутствующего productId в позиции корзины или заказа.
	ErrProductIDRequired = errors.New("productId is required")
	// Ошибка нулевого количества при добавлении в корзину.
	ErrQuantityRequired = errors.New("quantity is required")
	// ErrCartQuantityInvalid: новая позиция корзины должна иметь положительное количество.
	ErrCartQuantityInvalid = errors.New("quantity must be greater than zero for a new cart line")
	// Ошибка отсутствующего идентификатора пользователя в заказе.
	ErrUserIDRequired = errors.New("userId is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара в заказе (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отсутствующей итоговой суммы заказа.
	ErrTotalPriceRequired = errors.New("totalPrice is required")
	// Ошибка отрицательной итоговой суммы заказа.
	ErrTotalPriceNegative = errors.New("totalPrice must be non-negative")
	// ErrOutboxMessageNotFound: сообщение outbox не найдено при смене статуса.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")
)

// ValidationError объединяет ошибки некорректного клиентского ввода.
// Транспортный слой превращает её в HTTP 400.
type ValidationError struct {
	Errs []error
}

// NewValidationError оборачивает ошибки в ValidationError. Без ошибок возвращает nil.
func NewValidationError(errs ...error) error {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &ValidationError{Errs: filtered}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// Unwrap позволяет errors.Is находить исходные sentinel-ошибки.
func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// IsValidation проверяет, является ли ошибка ошибкой клиентского ввода.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
