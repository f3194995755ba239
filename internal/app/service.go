package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"swifthand/api/internal/auth"
	"swifthand/api/internal/authpw"
	"swifthand/api/internal/chat"
	"swifthand/api/internal/checklist"
	"swifthand/api/internal/config"
	"swifthand/api/internal/export"
	"swifthand/api/internal/rbac"
	"swifthand/api/internal/search"
	"swifthand/api/internal/session"
	"swifthand/api/internal/storage"
	"swifthand/api/internal/store"
	"swifthand/api/internal/util"
	"swifthand/api/internal/validate"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	InsertUser(context.Context, store.User) error
	EnsureUser(context.Context, store.User) (store.User, error)
	ListUsers(context.Context, string) ([]store.User, error)
	DeleteUser(context.Context, string) error

	ListServices(context.Context, string) ([]store.Service, error)
	ListServicesByIDs(context.Context, []string) ([]store.Service, error)
	GetService(context.Context, string) (store.Service, error)
	InsertService(context.Context, store.Service) error
	UpdateService(context.Context, store.Service) error
	SetServiceImage(context.Context, string, string) error
	AppendFleetDoc(context.Context, string, store.FleetDoc) error
	AppendPortfolioItem(context.Context, string, store.PortfolioItem) error
	DeleteService(context.Context, string) error

	ListBookings(context.Context, store.BookingFilter) ([]store.Booking, error)
	GetBooking(context.Context, string) (store.Booking, error)
	LatestBookingForClient(context.Context, string, string, []string) (store.Booking, error)
	InsertBooking(context.Context, store.Booking) error
	UpdateBookingStatus(context.Context, string, string) error
	DeleteBooking(context.Context, string) error

	UpsertChecklist(context.Context, string, checklist.FormData, string) (store.Checklist, error)
	FindChecklist(context.Context, string) (store.Checklist, error)
	ListChecklistsForService(context.Context, string) ([]store.Checklist, error)

	sessionStore
	Ping(ctx context.Context) error
}

// sessionStore keeps refresh tokens and revoked access tokens. Redis when
// configured, otherwise the Postgres tables.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type serviceSearch interface {
	Search(context.Context, search.Query) search.Response
	IndexService(search.ServiceRecord)
	DeleteService(string)
}

type uploadStore interface {
	Put(ctx context.Context, field, filename string, body io.Reader, size int64) (storage.Object, error)
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]storage.Object, error)
}

type documentRenderer interface {
	Cards([]export.ServiceCards) (string, error)
	Full(export.View) (string, error)
	Form(export.Form) (string, error)
	PDF(context.Context, export.View) (*export.Result, error)
}

// Dependencies are the optional collaborators of a Service. Nil fields disable
// the features that need them.
type Dependencies struct {
	Sessions sessionStore
	Search   serviceSearch
	Uploads  uploadStore
	Renderer documentRenderer
	Chat     chat.Completer
	Catalog  *checklist.Catalog
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	accounts *authpw.Service
	search   serviceSearch
	uploads  uploadStore
	renderer documentRenderer
	chat     chat.Completer
	catalog  *checklist.Catalog
	now      func() time.Time
}

func New(cfg config.Config, dataStore dataStore, deps Dependencies) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: deps.Sessions,
		accounts: authpw.NewService(dataStore),
		search:   deps.Search,
		uploads:  deps.Uploads,
		renderer: deps.Renderer,
		chat:     deps.Chat,
		catalog:  deps.Catalog,
		now:      time.Now,
	}
	if s.sessions == nil {
		s.sessions = dataStore
	}
	if s.catalog == nil {
		s.catalog = checklist.DefaultCatalog()
	}
	if s.renderer == nil {
		s.renderer = export.NewRenderer(s.catalog, export.Branding{CompanyName: cfg.CompanyName, LogoURL: cfg.CompanyLogoURL}, cfg.PDFTimeout)
	}
	return s
}

// Bootstrap ensures the staff accounts configured in the environment exist.
func (s *Service) Bootstrap(ctx context.Context) error {
	staff := []struct {
		name     string
		email    string
		password string
		role     rbac.Role
	}{
		{"Administrator", s.cfg.AdminEmail, s.cfg.AdminPassword, rbac.RoleAdmin},
		{"Clerk", s.cfg.ClerkEmail, s.cfg.ClerkPassword, rbac.RoleClerk},
	}
	for _, account := range staff {
		user, ensured, err := s.accounts.EnsureAccount(ctx, account.name, account.email, account.password, account.role)
		if err != nil {
			return err
		}
		if !ensured {
			log.Printf("bootstrap: %s credentials not set, skipping", account.role)
			continue
		}
		if user.Role != string(account.role) {
			log.Printf("bootstrap: %s already registered with role %s", user.Email, user.Role)
		}
	}
	return nil
}

func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (map[string]any, error) {
	user, err := s.accounts.Register(ctx, req)
	if err != nil {
		var fields validate.FieldErrors
		switch {
		case errors.As(err, &fields):
			return nil, validationError("Registration details are invalid", fields)
		case errors.Is(err, authpw.ErrEmailTaken):
			return nil, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email is already registered", nil)
		}
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token. The user row is reloaded so role changes
// apply to the new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	owner, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, session.ErrSessionNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			log.Printf("logout: revoke access token: %v", err)
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			log.Printf("logout: revoke refresh token: %v", err)
		}
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
