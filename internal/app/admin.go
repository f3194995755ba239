package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"swifthand/api/internal/rbac"
	"swifthand/api/internal/storage"
)

// ListImages returns the uploaded image library, newest first. Without object
// storage the library is empty.
func (s *Service) ListImages(ctx context.Context, caller Session) ([]storage.Object, error) {
	if !s.Can(caller.Role, rbac.ActionAdmin) {
		return nil, forbidden()
	}
	if s.uploads == nil {
		return []storage.Object{}, nil
	}
	objects, err := s.uploads.List(ctx)
	if err != nil {
		return nil, wrap("list images", err)
	}
	if objects == nil {
		objects = []storage.Object{}
	}
	return objects, nil
}

func (s *Service) DeleteImage(ctx context.Context, caller Session, name string) error {
	if !s.Can(caller.Role, rbac.ActionAdmin) {
		return forbidden()
	}
	if s.uploads == nil {
		return domainError(http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
	}
	if err := s.uploads.Remove(ctx, name); err != nil {
		return uploadError(err)
	}
	return nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, caller Session, userID string) error {
	if !s.Can(caller.Role, rbac.ActionAdmin) {
		return forbidden()
	}
	if userID == caller.UserID {
		return domainError(http.StatusBadRequest, "SELF_DELETE", "You cannot delete your own account", nil)
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("User not found")
		}
		return wrap("delete user", err)
	}
	// Postgres sessions cascade with the user row; Redis needs an explicit sweep.
	if revoker, ok := s.sessions.(userSessionRevoker); ok {
		if _, err := revoker.RevokeAllForUser(ctx, userID); err != nil {
			log.Printf("delete user: revoke sessions of %s: %v", userID, err)
		}
	}
	return nil
}

type userSessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
}
