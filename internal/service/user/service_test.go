package user

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	"github.com/vladislavdragonenkov/dailygoods/internal/storage/memory"
)

func newService() *Service {
	return NewService(memory.NewUserStore(), bcrypt.MinCost, nil)
}

func TestService_RegisterHashesPassword(t *testing.T) {
	svc := newService()

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Alice@Example.com ",
		Password: "s3cret",
		Name:     " Alice ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEqual(t, "s3cret", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")))
}

func TestService_RegisterValidation(t *testing.T) {
	svc := newService()

	_, err := svc.Register(context.Background(), RegisterRequest{})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrEmailRequired)
	assert.ErrorIs(t, err, domain.ErrPasswordRequired)
}

func TestService_RegisterPasswordLength(t *testing.T) {
	svc := newService()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "long@example.com",
		Password: strings.Repeat("x", maxPasswordBytes+1),
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrPasswordTooLong)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "edge@example.com",
		Password: strings.Repeat("x", maxPasswordBytes),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Email: "BOB@example.com", Password: "other"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestService_Get(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterRequest{Email: "carol@example.com", Password: "pw"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, " "+created.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
