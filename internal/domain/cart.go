package domain

import "strings"

// CartLine позиция корзины: товар и его количество.
type CartLine struct {
	ProductID string
	Quantity  int
}

// ExpandedCartLine: позиция корзины вместе с карточкой товара.
type ExpandedCartLine struct {
	CartLine
	// Product равен nil, если товар уже удалён из каталога.
	Product *Product
}

// Cart: упорядоченный по времени добавления набор позиций.
// Каждый productId встречается не более одного раза, количество всегда > 0.
type Cart []CartLine

// CanonicalID приводит идентификатор к виду, в котором он сравнивается.
func CanonicalID(id string) string {
	return strings.TrimSpace(id)
}

// Add добавляет quantity к позиции productID или создаёт новую позицию в конце.
// Отрицательное количество уменьшает существующую позицию; позиция с количеством <= 0 удаляется.
// Исходная корзина не изменяется.
func (c Cart) Add(productID string, quantity int) (Cart, error) {
	productID = CanonicalID(productID)
	if productID == "" {
		return c, ErrProductIDRequired
	}
	if quantity == 0 {
		return c, ErrQuantityRequired
	}

	result := c.Clone()
	for i := range result {
		if CanonicalID(result[i].ProductID) != productID {
			continue
		}
		result[i].Quantity += quantity
		if result[i].Quantity <= 0 {
			return append(result[:i], result[i+1:]...), nil
		}
		return result, nil
	}

	if quantity < 0 {
		return c, ErrCartQuantityInvalid
	}
	return append(result, CartLine{ProductID: productID, Quantity: quantity}), nil
}

// Remove возвращает корзину без позиций productID. Отсутствие позиции: не ошибка.
func (c Cart) Remove(productID string) Cart {
	productID = CanonicalID(productID)
	result := make(Cart, 0, len(c))
	for _, line := range c {
		if CanonicalID(line.ProductID) == productID {
			continue
		}
		result = append(result, line)
	}
	return result
}

// Find ищет позицию по productID.
func (c Cart) Find(productID string) (CartLine, bool) {
	productID = CanonicalID(productID)
	for _, line := range c {
		if CanonicalID(line.ProductID) == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// ProductIDs возвращает идентификаторы товаров в порядке корзины.
func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c))
	for _, line := range c {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// Clone возвращает независимую копию корзины (никогда не nil).
func (c Cart) Clone() Cart {
	result := make(Cart, len(c))
	copy(result, c)
	return result
}
