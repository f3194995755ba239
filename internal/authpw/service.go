// Package authpw provides email/password registration and sign-in.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"swifthand/api/internal/rbac"
	"swifthand/api/internal/store"
	"swifthand/api/internal/util"
	"swifthand/api/internal/validate"
)

var (
	ErrEmailTaken         = errors.New("an account with that email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserStore is the subset of the store used for accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	InsertUser(ctx context.Context, user store.User) error
	EnsureUser(ctx context.Context, user store.User) (store.User, error)
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// RegisterRequest is the public sign-up form.
type RegisterRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,password"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

// Register creates a client account. Public sign-ups never get another role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return store.User{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return store.User{}, err
	}
	user := store.User{
		ID:           util.NewID("usr"),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         string(rbac.RoleClient),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.User{}, ErrEmailTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks the password against the stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, email, password string) (store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAccount creates a staff account when the email is not registered yet.
// Existing accounts are returned untouched. The bool is false when the
// credentials are blank and nothing was done.
func (s *Service) EnsureAccount(ctx context.Context, name, email, password string, role rbac.Role) (store.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.User{}, false, nil
	}
	hash, err := s.hash(password)
	if err != nil {
		return store.User{}, false, err
	}
	user, err := s.store.EnsureUser(ctx, store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         string(role),
	})
	if err != nil {
		return store.User{}, false, fmt.Errorf("ensure %s account: %w", role, err)
	}
	return user, true, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
