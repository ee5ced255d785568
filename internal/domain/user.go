package domain

import (
	"strings"
	"time"
)

// User: покупатель. Корзина хранится отдельно (CartRepository), но принадлежит пользователю.
type User struct {
	ID    string
	Email string
	// PasswordHash: bcrypt-хеш, открытый пароль не хранится.
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}

// NormalizeEmail приводит email к виду, в котором проверяется уникальность.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
