package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"swifthand/api/internal/checklist"
	"swifthand/api/internal/export"
	"swifthand/api/internal/store"
)

type fakeRenderer struct {
	pdfView export.View
	form    export.Form
}

func (f *fakeRenderer) Cards([]export.ServiceCards) (string, error) { return "<div>cards</div>", nil }
func (f *fakeRenderer) Full(export.View) (string, error)             { return "<html>view</html>", nil }
func (f *fakeRenderer) Form(form export.Form) (string, error) {
	f.form = form
	return "<form></form>", nil
}
func (f *fakeRenderer) PDF(_ context.Context, view export.View) (*export.Result, error) {
	f.pdfView = view
	return &export.Result{Data: []byte("%PDF-1.4 test"), Filename: "checklist-" + view.BookingID + ".pdf", MimeType: "application/pdf"}, nil
}

var testClient = store.User{ID: "usr-c", Name: "Client", Email: "client@example.com", Role: "client"}

func newTestHandler(fs *fakeStore, deps Dependencies) (*Service, http.Handler) {
	if fs.getUserByIDFn == nil {
		fs.getUserByIDFn = usersByID(testClient)
	}
	svc := newTestService(fs, deps)
	return svc, NewHTTPServer(svc, "*").Handler()
}

func bearer(t *testing.T, svc *Service, user store.User) string {
	t.Helper()
	session, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}
	return "Bearer " + session.Token
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
	if ok, _ := decodeResponse(t, rec)["ok"].(bool); !ok {
		t.Fatal("expected ok=true in response")
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	fs := &fakeStore{pingFn: func(context.Context) error { return errors.New("connection refused") }}
	_, handler := newTestHandler(fs, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %v", body["status"])
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := testClient
	user.PasswordHash = string(hash)
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) { return user, nil },
		getUserByIDFn:    usersByID(user),
	}
	_, handler := newTestHandler(fs, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"client@example.com","password":"Secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["token"] == "" || body["userName"] != "Client" || body["role"] != "client" {
		t.Fatalf("unexpected login response %+v", body)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value != body["token"] {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}

	// The cookie alone authenticates page routes.
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected dashboard 200 with cookie, got %d: %s", rec.Code, rec.Body.String())
	}
	if role := decodeResponse(t, rec)["role"]; role != "client" {
		t.Fatalf("unexpected dashboard role %v", role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if code := decodeResponse(t, rec)["code"]; code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected code %v", code)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{})
	for _, path := range []string{"/dashboard", "/dashboard/checklist/bkg-1", "/bookings/bkg-1/checklist/download"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a malformed token, got %d", rec.Code)
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := decodeResponse(t, rec)
	if body["authenticated"] != false || body["userName"] != nil {
		t.Fatalf("unexpected anonymous session %+v", body)
	}
}

func TestLatestChecklistEndpoint(t *testing.T) {
	fs := &fakeStore{
		latestBookingFn: func(context.Context, string, string, []string) (store.Booking, error) {
			return store.Booking{ID: "bkg-1"}, nil
		},
		findChecklistFn: func(context.Context, string) (store.Checklist, error) {
			return store.Checklist{ID: "chk-1", BookingID: "bkg-1", FormData: checklist.FormData{"shift": checklist.Scalar("Day")}}, nil
		},
	}
	svc, handler := newTestHandler(fs, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/services/svc-1/checklists/latest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"checklist":null}` {
		t.Fatalf("anonymous caller: got %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/services/svc-1/checklists/latest", nil)
	req.Header.Set("Authorization", bearer(t, svc, testClient))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	item, _ := decodeResponse(t, rec)["checklist"].(map[string]any)
	if item == nil || item["id"] != "chk-1" {
		t.Fatalf("expected checklist chk-1, got %s", rec.Body.String())
	}
	formData, _ := item["formData"].(map[string]any)
	if formData["shift"] != "Day" {
		t.Fatalf("unexpected formData %+v", item["formData"])
	}
}

func TestServiceChecklistsEmpty(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/api/services/svc-1/checklists", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"checklists":[]}` {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestChecklistSubmitUrlencoded(t *testing.T) {
	fs := submitFixture()
	var saved checklist.FormData
	fs.upsertChecklistFn = func(_ context.Context, bookingID string, data checklist.FormData, by string) (store.Checklist, error) {
		saved = data
		return store.Checklist{ID: "chk-1", BookingID: bookingID, FormData: data, SubmittedBy: by}, nil
	}
	svc, handler := newTestHandler(fs, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/dashboard/checklist/bkg-1", strings.NewReader(scenarioForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", bearer(t, svc, testClient))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["message"] != "Checklist submitted successfully" || body["redirectUrl"] != "/dashboard" {
		t.Fatalf("unexpected response %+v", body)
	}
	if checklist.StatusOf(saved, "Brake_Fluid") != "DEF" || checklist.ArrivalOf(saved, "Brake_Fluid") != "08:15" {
		t.Fatalf("unexpected saved data %+v", saved)
	}
}

func TestChecklistSubmitErrorsUseMessageShape(t *testing.T) {
	fs := submitFixture()
	fs.upsertChecklistFn = func(context.Context, string, checklist.FormData, string) (store.Checklist, error) {
		return store.Checklist{}, errors.New("disk full")
	}
	svc, handler := newTestHandler(fs, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/dashboard/checklist/bkg-1", strings.NewReader(url.Values{"Horn": {"OK"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", bearer(t, svc, testClient))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if message := decodeResponse(t, rec)["message"]; message != "Server error saving checklist" {
		t.Fatalf("unexpected message %v", message)
	}

	stranger := store.User{ID: "usr-z", Name: "Stranger", Role: "client"}
	fs.getUserByIDFn = usersByID(testClient, stranger)
	req = httptest.NewRequest(http.MethodPost, "/dashboard/checklist/bkg-1", strings.NewReader(url.Values{"Horn": {"OK"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", bearer(t, svc, stranger))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another client's booking, got %d", rec.Code)
	}
	if _, ok := decodeResponse(t, rec)["message"]; !ok {
		t.Fatal("expected message field")
	}
}

func TestChecklistDownload(t *testing.T) {
	fs := submitFixture()
	renderer := &fakeRenderer{}
	svc, handler := newTestHandler(fs, Dependencies{Renderer: renderer})
	token := bearer(t, svc, testClient)

	req := httptest.NewRequest(http.MethodGet, "/bookings/bkg-1/checklist/download", nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a checklist, got %d", rec.Code)
	}
	if code := decodeResponse(t, rec)["code"]; code != "NOT_FOUND" {
		t.Fatalf("unexpected code %v", code)
	}

	fs.findChecklistFn = func(context.Context, string) (store.Checklist, error) {
		return store.Checklist{ID: "chk-1", BookingID: "bkg-1", SubmittedBy: "usr-c"}, nil
	}
	req = httptest.NewRequest(http.MethodGet, "/bookings/bkg-1/checklist/download", nil)
	req.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="checklist-bkg-1.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rec.Header().Get("Content-Length") != "13" || !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if renderer.pdfView.SubmittedBy != "Client" {
		t.Fatalf("expected submitter name resolved, got %q", renderer.pdfView.SubmittedBy)
	}
}

func TestChecklistCardsRequiresIDs(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{Renderer: &fakeRenderer{}})

	req := httptest.NewRequest(http.MethodGet, "/services/checklists/cards", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/services/checklists/cards?ids=svc-1,svc-2", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "<div>cards</div>" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestChatEndpointRejectsEmptyQuery(t *testing.T) {
	_, handler := newTestHandler(&fakeStore{}, Dependencies{Chat: &fakeCompleter{reply: "hi"}})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"  "}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeResponse(t, rec)["error"]; got != "Query is required." {
		t.Fatalf("unexpected error %v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"transport"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || decodeResponse(t, rec)["reply"] != "hi" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}
