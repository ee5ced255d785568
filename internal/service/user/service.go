// Package user регистрирует покупателей.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// bcrypt отвергает пароли длиннее 72 байт.
const maxPasswordBytes = 72

// RegisterRequest данные регистрации.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// Service пользователи магазина.
type Service struct {
	users  domain.UserRepository
	cost   int
	logger *log.Entry
}

// NewService создаёт сервис. cost <= 0 означает bcrypt.DefaultCost.
func NewService(users domain.UserRepository, cost int, logger *log.Entry) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = log.WithField("component", "user-service")
	}
	return &Service{users: users, cost: cost, logger: logger}
}

// Register создаёт пользователя с пустой корзиной. Пароль хранится только как bcrypt-хеш.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	email := domain.NormalizeEmail(req.Email)

	var invalid []error
	if email == "" {
		invalid = append(invalid, domain.ErrEmailRequired)
	}
	if req.Password == "" {
		invalid = append(invalid, domain.ErrPasswordRequired)
	}
	if len(req.Password) > maxPasswordBytes {
		invalid = append(invalid, domain.ErrPasswordTooLong)
	}
	if err := domain.NewValidationError(invalid...); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return domain.User{}, domain.NewValidationError(domain.ErrPasswordTooLong)
		}
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return domain.User{}, domain.NewValidationError(err)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Get возвращает пользователя или domain.ErrUserNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	return s.users.Get(ctx, domain.CanonicalID(id))
}
