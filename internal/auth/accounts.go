package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

var handlePattern = regexp.MustCompile(`^\w+$`)

type registration struct {
	Username string `validate:"required,min=3,max=20,handle"`
	Email    string `validate:"required,email,max=100"`
	Password string `validate:"required,min=6,maxbytes=72"`
	Phone    string `validate:"omitempty,e164"`
}

// Accounts registers users and logs them in.
type Accounts struct {
	store    store.Store
	tokens   *Tokens
	admins   map[string]bool
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAccounts wires account handling. adminEmails grants the admin role at
// registration; matching is case-insensitive.
func NewAccounts(st store.Store, tokens *Tokens, adminEmails []string, logger *slog.Logger) *Accounts {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	// bcrypt rejects passwords longer than 72 bytes, whatever their rune count
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= limit
	})

	return &Accounts{store: st, tokens: tokens, admins: admins, validate: v, logger: logger}
}

func (a *Accounts) Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error) {
	in := registration{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
		Phone:    strings.TrimSpace(req.Phone),
	}
	if err := a.validate.Struct(in); err != nil {
		return models.AuthResponse{}, fmt.Errorf("%w: %s", domainerrors.ErrInvalidInput, describe(err))
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return models.AuthResponse{}, err
	}

	role := models.RoleUser
	if a.admins[in.Email] {
		role = models.RoleAdmin
	}
	user := models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hashed,
		Role:     role,
		Phone:    in.Phone,
	}
	if err := a.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, domainerrors.ErrConstraintViolation) {
			return models.AuthResponse{}, fmt.Errorf("username or email already exists: %w", err)
		}
		return models.AuthResponse{}, err
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		return models.AuthResponse{}, err
	}
	a.logger.Info("user registered", "event", "user_registered", "user_id", user.ID, "role", user.Role)
	return models.AuthResponse{Token: token, User: user, Message: "User registered successfully"}, nil
}

func (a *Accounts) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	user, err := a.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return models.AuthResponse{}, domainerrors.ErrInvalidCredentials
		}
		return models.AuthResponse{}, err
	}
	if !CheckPassword(user.Password, req.Password) {
		return models.AuthResponse{}, domainerrors.ErrInvalidCredentials
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return models.AuthResponse{Token: token, User: user, Message: "Login successful"}, nil
}

// Me returns the stored user behind id.
func (a *Accounts) Me(ctx context.Context, id *Identity) (models.User, error) {
	if id == nil {
		return models.User{}, domainerrors.ErrUnauthenticated
	}
	return a.store.GetUser(ctx, id.UserID)
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "maxbytes":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s bytes", field, fe.Param()))
		case "handle":
			msgs = append(msgs, field+" may only contain letters, digits and underscores")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
