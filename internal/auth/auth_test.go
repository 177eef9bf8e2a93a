package auth

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store/memory"
)

func newAccounts(t *testing.T, admins ...string) *Accounts {
	t.Helper()
	return NewAccounts(memory.New(), NewTokens([]byte("test-secret"), time.Hour), admins, slog.New(slog.DiscardHandler))
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)
	raw, err := tokens.Issue(models.User{ID: 7, Username: "alice", Email: "alice@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: 7, Username: "alice", Email: "alice@example.com", Role: models.RoleAdmin}, id)
}

func TestTokensRejectBadTokens(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		raw, err := NewTokens([]byte("other"), time.Hour).Issue(models.User{ID: 1})
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewTokens([]byte("test-secret"), time.Hour)
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		raw, err := old.Issue(models.User{ID: 1})
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	})

	t.Run("none algorithm", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"user_id": 1,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not-a-token")
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t, "Root@Example.com")

	res, err := accounts.Register(ctx, models.RegisterRequest{Username: "alice_1", Email: " Alice@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.NotEqual(t, "secret1", res.User.Password)

	admin, err := accounts.Register(ctx, models.RegisterRequest{Username: "root", Email: "root@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.User.Role)

	logged, err := accounts.Login(ctx, models.LoginRequest{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	id, err := accounts.tokens.Parse(logged.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id.UserID)

	_, err = accounts.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "wrong!"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	_, err = accounts.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	me, err := accounts.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice_1", me.Username)
	_, err = accounts.Me(ctx, nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t)

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"short username", models.RegisterRequest{Username: "al", Email: "al@example.com", Password: "secret1"}},
		{"username symbols", models.RegisterRequest{Username: "al ice!", Email: "al@example.com", Password: "secret1"}},
		{"bad email", models.RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret1"}},
		{"short password", models.RegisterRequest{Username: "alice", Email: "al@example.com", Password: "123"}},
		{"password over 72 bytes", models.RegisterRequest{Username: "alice", Email: "al@example.com", Password: strings.Repeat("é", 40)}},
		{"bad phone", models.RegisterRequest{Username: "alice", Email: "al@example.com", Password: "secret1", Phone: "call me"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Register(ctx, tt.req)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
		})
	}

	_, err := accounts.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = accounts.Register(ctx, models.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrConstraintViolation)

	// 36 two-byte runes is exactly the bcrypt limit
	_, err = accounts.Register(ctx, models.RegisterRequest{Username: "accented", Email: "accented@example.com", Password: strings.Repeat("é", 36)})
	require.NoError(t, err)
	_, err = accounts.Login(ctx, models.LoginRequest{Email: "accented@example.com", Password: strings.Repeat("é", 36)})
	assert.NoError(t, err)
}

func TestPolicies(t *testing.T) {
	author := &Identity{UserID: 1, Role: models.RoleUser}
	other := &Identity{UserID: 2, Role: models.RoleUser}
	admin := &Identity{UserID: 3, Role: models.RoleAdmin}

	q := models.Question{ID: 10, AuthorID: 1}
	a := models.Answer{ID: 20, AuthorID: 2}
	c := models.Comment{ID: 30, UserID: 2}
	n := models.Notification{ID: 40, UserID: 1}

	assert.True(t, CanAcceptAnswer(author, q))
	assert.False(t, CanAcceptAnswer(other, q))
	assert.False(t, CanAcceptAnswer(admin, q))
	assert.False(t, CanAcceptAnswer(nil, q))

	assert.True(t, CanDeleteQuestion(admin, q))
	assert.False(t, CanDeleteQuestion(author, q))
	assert.False(t, CanDeleteQuestion(nil, q))

	assert.True(t, CanDeleteAnswer(other, a))
	assert.True(t, CanDeleteAnswer(admin, a))
	assert.False(t, CanDeleteAnswer(author, a))

	assert.True(t, CanDeleteComment(other, c))
	assert.True(t, CanDeleteComment(admin, c))
	assert.False(t, CanDeleteComment(nil, c))

	assert.True(t, CanReadNotification(author, n))
	assert.False(t, CanReadNotification(admin, n))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}
