package app

import (
	"context"

	"swifthand/api/internal/rbac"
	"swifthand/api/internal/storage"
	"swifthand/api/internal/store"
)

// Dashboard is the role-specific landing view. The set of implementations is closed.
type Dashboard interface {
	Role() rbac.Role
	dashboard()
}

type AdminDashboard struct {
	Services  []map[string]any `json:"services"`
	Bookings  []map[string]any `json:"bookings"`
	Providers []map[string]any `json:"providers"`
	Users     []map[string]any `json:"users"`
	Images    []storage.Object `json:"images"`
}

type ClerkDashboard struct {
	Services []map[string]any `json:"services"`
	Bookings []map[string]any `json:"bookings"`
}

type ClientDashboard struct {
	Bookings []map[string]any `json:"bookings"`
}

type ProviderDashboard struct {
	Services []map[string]any `json:"services"`
	Bookings []map[string]any `json:"bookings"`
}

func (AdminDashboard) Role() rbac.Role    { return rbac.RoleAdmin }
func (ClerkDashboard) Role() rbac.Role    { return rbac.RoleClerk }
func (ClientDashboard) Role() rbac.Role   { return rbac.RoleClient }
func (ProviderDashboard) Role() rbac.Role { return rbac.RoleProvider }

func (AdminDashboard) dashboard()    {}
func (ClerkDashboard) dashboard()    {}
func (ClientDashboard) dashboard()   {}
func (ProviderDashboard) dashboard() {}

// Dashboard builds the caller's view model. Booking rows carry hasChecklist.
func (s *Service) Dashboard(ctx context.Context, caller Session) (Dashboard, error) {
	switch rbac.Normalize(caller.Role) {
	case rbac.RoleAdmin:
		return s.adminDashboard(ctx, caller)
	case rbac.RoleClerk:
		services, err := s.store.ListServices(ctx, "")
		if err != nil {
			return nil, wrap("list services", err)
		}
		bookings, err := s.store.ListBookings(ctx, store.BookingFilter{})
		if err != nil {
			return nil, wrap("list bookings", err)
		}
		return ClerkDashboard{Services: servicePayloads(services), Bookings: bookingPayloads(bookings)}, nil
	case rbac.RoleProvider:
		services, err := s.store.ListServices(ctx, caller.UserID)
		if err != nil {
			return nil, wrap("list provider services", err)
		}
		bookings, err := s.store.ListBookings(ctx, store.BookingFilter{ProviderID: caller.UserID})
		if err != nil {
			return nil, wrap("list provider bookings", err)
		}
		return ProviderDashboard{Services: servicePayloads(services), Bookings: bookingPayloads(bookings)}, nil
	default:
		bookings, err := s.store.ListBookings(ctx, store.BookingFilter{ClientID: caller.UserID})
		if err != nil {
			return nil, wrap("list client bookings", err)
		}
		return ClientDashboard{Bookings: bookingPayloads(bookings)}, nil
	}
}

func (s *Service) adminDashboard(ctx context.Context, caller Session) (Dashboard, error) {
	services, err := s.store.ListServices(ctx, "")
	if err != nil {
		return nil, wrap("list services", err)
	}
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{})
	if err != nil {
		return nil, wrap("list bookings", err)
	}
	providers, err := s.store.ListUsers(ctx, string(rbac.RoleProvider))
	if err != nil {
		return nil, wrap("list providers", err)
	}
	users, err := s.store.ListUsers(ctx, "")
	if err != nil {
		return nil, wrap("list users", err)
	}
	images, err := s.ListImages(ctx, caller)
	if err != nil {
		return nil, err
	}
	return AdminDashboard{
		Services:  servicePayloads(services),
		Bookings:  bookingPayloads(bookings),
		Providers: userPayloads(providers),
		Users:     userPayloads(users),
		Images:    images,
	}, nil
}

func userPayloads(users []store.User) []map[string]any {
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userPayload(user))
	}
	return items
}
