package domain

import "context"

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Create сохраняет товар. Если ID пустой, хранилище назначает его само.
	Create(ctx context.Context, product Product) (Product, error)
	// Get возвращает товар или ErrProductNotFound (в том числе для некорректного id).
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает все товары без фильтрации и пагинации.
	List(ctx context.Context) ([]Product, error)
	// GetMany возвращает найденные товары; отсутствующие id пропускаются.
	GetMany(ctx context.Context, ids []string) ([]Product, error)
	// Update применяет патч и возвращает товар после обновления или ErrProductNotFound.
	Update(ctx context.Context, id string, patch ProductPatch) (Product, error)
	// Delete удаляет товар. Отсутствие товара ошибкой не считается.
	Delete(ctx context.Context, id string) error
}

// UserRepository хранит пользователей.
type UserRepository interface {
	// Create сохраняет пользователя или возвращает ErrEmailTaken.
	Create(ctx context.Context, user User) (User, error)
	// Get возвращает пользователя или ErrUserNotFound.
	Get(ctx context.Context, id string) (User, error)
}

// CartRepository хранит корзины как отображение (userID, productID) -> quantity.
// Каждая мутация: одна операция над ключом, без перезаписи всего пользователя.
// Для неизвестного пользователя все методы возвращают ErrUserNotFound.
type CartRepository interface {
	Items(ctx context.Context, userID string) (Cart, error)
	// AddItem атомарно прибавляет quantity к позиции (см. Cart.Add) и возвращает корзину.
	AddItem(ctx context.Context, userID, productID string, quantity int) (Cart, error)
	// RemoveItem удаляет позицию и возвращает оставшуюся корзину.
	RemoveItem(ctx context.Context, userID, productID string) (Cart, error)
	// Clear очищает корзину.
	Clear(ctx context.Context, userID string) error
}

// OrderRepository хранит заказы.
type OrderRepository interface {
	// Create сохраняет заказ; пустой ID назначается хранилищем.
	Create(ctx context.Context, order Order) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
