package app

import (
	"context"
	"database/sql"
	"time"

	"swifthand/api/internal/checklist"
	"swifthand/api/internal/config"
	"swifthand/api/internal/store"
)

type fakeStore struct {
	getUserByIDFn           func(context.Context, string) (store.User, error)
	getUserByEmailFn        func(context.Context, string) (store.User, error)
	insertUserFn            func(context.Context, store.User) error
	ensureUserFn            func(context.Context, store.User) (store.User, error)
	listUsersFn             func(context.Context, string) ([]store.User, error)
	deleteUserFn            func(context.Context, string) error
	listServicesFn          func(context.Context, string) ([]store.Service, error)
	listServicesByIDsFn     func(context.Context, []string) ([]store.Service, error)
	getServiceFn            func(context.Context, string) (store.Service, error)
	insertServiceFn         func(context.Context, store.Service) error
	updateServiceFn         func(context.Context, store.Service) error
	setServiceImageFn       func(context.Context, string, string) error
	appendFleetDocFn        func(context.Context, string, store.FleetDoc) error
	appendPortfolioItemFn   func(context.Context, string, store.PortfolioItem) error
	deleteServiceFn         func(context.Context, string) error
	listBookingsFn          func(context.Context, store.BookingFilter) ([]store.Booking, error)
	getBookingFn            func(context.Context, string) (store.Booking, error)
	latestBookingFn         func(context.Context, string, string, []string) (store.Booking, error)
	insertBookingFn         func(context.Context, store.Booking) error
	updateBookingStatusFn   func(context.Context, string, string) error
	deleteBookingFn         func(context.Context, string) error
	upsertChecklistFn       func(context.Context, string, checklist.FormData, string) (store.Checklist, error)
	findChecklistFn         func(context.Context, string) (store.Checklist, error)
	listServiceChecklistsFn func(context.Context, string) ([]store.Checklist, error)
	lookupRefreshSessionFn  func(context.Context, string) (store.User, error)
	isAccessTokenRevokedFn  func(context.Context, string) (bool, error)
	pingFn                  func(context.Context) error
	savedRefreshSessions    []string
	revokedRefreshSessions  []string
	revokedAccessTokens     []string
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) InsertUser(ctx context.Context, user store.User) error {
	if f.insertUserFn != nil {
		return f.insertUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) EnsureUser(ctx context.Context, user store.User) (store.User, error) {
	if f.ensureUserFn != nil {
		return f.ensureUserFn(ctx, user)
	}
	return user, nil
}
func (f *fakeStore) ListUsers(ctx context.Context, role string) ([]store.User, error) {
	if f.listUsersFn != nil {
		return f.listUsersFn(ctx, role)
	}
	return nil, nil
}
func (f *fakeStore) DeleteUser(ctx context.Context, userID string) error {
	if f.deleteUserFn != nil {
		return f.deleteUserFn(ctx, userID)
	}
	return nil
}
func (f *fakeStore) ListServices(ctx context.Context, providerID string) ([]store.Service, error) {
	if f.listServicesFn != nil {
		return f.listServicesFn(ctx, providerID)
	}
	return nil, nil
}
func (f *fakeStore) ListServicesByIDs(ctx context.Context, ids []string) ([]store.Service, error) {
	if f.listServicesByIDsFn != nil {
		return f.listServicesByIDsFn(ctx, ids)
	}
	return nil, nil
}
func (f *fakeStore) GetService(ctx context.Context, serviceID string) (store.Service, error) {
	if f.getServiceFn != nil {
		return f.getServiceFn(ctx, serviceID)
	}
	return store.Service{}, sql.ErrNoRows
}
func (f *fakeStore) InsertService(ctx context.Context, service store.Service) error {
	if f.insertServiceFn != nil {
		return f.insertServiceFn(ctx, service)
	}
	return nil
}
func (f *fakeStore) UpdateService(ctx context.Context, service store.Service) error {
	if f.updateServiceFn != nil {
		return f.updateServiceFn(ctx, service)
	}
	return nil
}
func (f *fakeStore) SetServiceImage(ctx context.Context, serviceID, imageURL string) error {
	if f.setServiceImageFn != nil {
		return f.setServiceImageFn(ctx, serviceID, imageURL)
	}
	return nil
}
func (f *fakeStore) AppendFleetDoc(ctx context.Context, serviceID string, doc store.FleetDoc) error {
	if f.appendFleetDocFn != nil {
		return f.appendFleetDocFn(ctx, serviceID, doc)
	}
	return nil
}
func (f *fakeStore) AppendPortfolioItem(ctx context.Context, serviceID string, item store.PortfolioItem) error {
	if f.appendPortfolioItemFn != nil {
		return f.appendPortfolioItemFn(ctx, serviceID, item)
	}
	return nil
}
func (f *fakeStore) DeleteService(ctx context.Context, serviceID string) error {
	if f.deleteServiceFn != nil {
		return f.deleteServiceFn(ctx, serviceID)
	}
	return nil
}
func (f *fakeStore) ListBookings(ctx context.Context, filter store.BookingFilter) ([]store.Booking, error) {
	if f.listBookingsFn != nil {
		return f.listBookingsFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) GetBooking(ctx context.Context, bookingID string) (store.Booking, error) {
	if f.getBookingFn != nil {
		return f.getBookingFn(ctx, bookingID)
	}
	return store.Booking{}, sql.ErrNoRows
}
func (f *fakeStore) LatestBookingForClient(ctx context.Context, serviceID, clientID string, statuses []string) (store.Booking, error) {
	if f.latestBookingFn != nil {
		return f.latestBookingFn(ctx, serviceID, clientID, statuses)
	}
	return store.Booking{}, sql.ErrNoRows
}
func (f *fakeStore) InsertBooking(ctx context.Context, booking store.Booking) error {
	if f.insertBookingFn != nil {
		return f.insertBookingFn(ctx, booking)
	}
	return nil
}
func (f *fakeStore) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	if f.updateBookingStatusFn != nil {
		return f.updateBookingStatusFn(ctx, bookingID, status)
	}
	return nil
}
func (f *fakeStore) DeleteBooking(ctx context.Context, bookingID string) error {
	if f.deleteBookingFn != nil {
		return f.deleteBookingFn(ctx, bookingID)
	}
	return nil
}
func (f *fakeStore) UpsertChecklist(ctx context.Context, bookingID string, data checklist.FormData, submittedBy string) (store.Checklist, error) {
	if f.upsertChecklistFn != nil {
		return f.upsertChecklistFn(ctx, bookingID, data, submittedBy)
	}
	now := time.Now()
	return store.Checklist{ID: "chk-1", BookingID: bookingID, FormData: data, SubmittedBy: submittedBy, CreatedAt: now, UpdatedAt: now}, nil
}
func (f *fakeStore) FindChecklist(ctx context.Context, bookingID string) (store.Checklist, error) {
	if f.findChecklistFn != nil {
		return f.findChecklistFn(ctx, bookingID)
	}
	return store.Checklist{}, sql.ErrNoRows
}
func (f *fakeStore) ListChecklistsForService(ctx context.Context, serviceID string) ([]store.Checklist, error) {
	if f.listServiceChecklistsFn != nil {
		return f.listServiceChecklistsFn(ctx, serviceID)
	}
	return nil, nil
}
func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, _ string, _ time.Time) error {
	f.savedRefreshSessions = append(f.savedRefreshSessions, tokenHash)
	return nil
}
func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.revokedRefreshSessions = append(f.revokedRefreshSessions, tokenHash)
	return nil
}
func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.revokedAccessTokens = append(f.revokedAccessTokens, jti)
	return nil
}
func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	for _, revoked := range f.revokedAccessTokens {
		if revoked == jti {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:   "test-secret",
		AccessTTL:   time.Hour,
		RefreshTTL:  24 * time.Hour,
		CompanyName: "Oshikoto Transport and Investment CC",
		PDFTimeout:  time.Second,
	}
}

func newTestService(fs *fakeStore, deps Dependencies) *Service {
	return New(testConfig(), fs, deps)
}

// usersByID serves GetUserByID from a fixed set.
func usersByID(users ...store.User) func(context.Context, string) (store.User, error) {
	return func(_ context.Context, id string) (store.User, error) {
		for _, user := range users {
			if user.ID == id {
				return user, nil
			}
		}
		return store.User{}, sql.ErrNoRows
	}
}
