package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// UserStore хранит пользователей и их корзины под одним мьютексом:
// корзина существует только у зарегистрированного пользователя.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	byEmail map[string]string
	carts   map[string]domain.Cart
}

// NewUserStore создаёт in-memory хранилище, реализующее UserRepository и CartRepository.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
		carts:   make(map[string]domain.Cart),
	}
}

// Create регистрирует пользователя с пустой корзиной.
func (s *UserStore) Create(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	if _, taken := s.byEmail[email]; taken {
		return domain.User{}, domain.ErrEmailTaken
	}

	user.ID = domain.CanonicalID(user.ID)
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = email
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.users[user.ID] = user
	s.byEmail[email] = user.ID
	s.carts[user.ID] = domain.Cart{}
	return user, nil
}

// Get возвращает пользователя или ErrUserNotFound.
func (s *UserStore) Get(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[domain.CanonicalID(id)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// Items возвращает копию корзины пользователя.
func (s *UserStore) Items(_ context.Context, userID string) (domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[domain.CanonicalID(userID)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cart.Clone(), nil
}

// AddItem выполняет read-modify-write позиции под эксклюзивной блокировкой.
func (s *UserStore) AddItem(_ context.Context, userID, productID string, quantity int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = domain.CanonicalID(userID)
	cart, ok := s.carts[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	updated, err := cart.Add(productID, quantity)
	if err != nil {
		return nil, err
	}
	s.carts[userID] = updated
	return updated.Clone(), nil
}

// RemoveItem удаляет позицию; отсутствие позиции ошибкой не считается.
func (s *UserStore) RemoveItem(_ context.Context, userID, productID string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = domain.CanonicalID(userID)
	cart, ok := s.carts[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	updated := cart.Remove(productID)
	s.carts[userID] = updated
	return updated.Clone(), nil
}

// Clear очищает корзину пользователя.
func (s *UserStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = domain.CanonicalID(userID)
	if _, ok := s.carts[userID]; !ok {
		return domain.ErrUserNotFound
	}
	s.carts[userID] = domain.Cart{}
	return nil
}

var (
	_ domain.UserRepository = (*UserStore)(nil)
	_ domain.CartRepository = (*UserStore)(nil)
)
