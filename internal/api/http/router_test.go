package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository/memory"
	"library-circulation-backend/internal/security"
	"library-circulation-backend/internal/service"
)

var clock = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	store   *memory.Store
	router  http.Handler
	tokens  security.TokenManager
	staff   string
	patron  string
	patron2 string
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	tokens := security.NewTokenManager("router-test-secret-0123456789abcdef", time.Hour)
	svcs := Services{
		Circulation:   service.NewCirculationService(store, nil),
		Moderation:    service.NewModerationService(store, nil),
		Submissions:   service.NewSubmissionService(store, security.NewContentSanitizer(), nil),
		Policy:        service.NewPolicyService(store),
		Auth:          service.NewAuthService(nil, tokens),
		Notifications: service.NewNotificationService(store, service.NewLogEmailService(), nil),
	}
	ts := &testServer{t: t, store: store, tokens: tokens, now: clock}
	ts.router = NewRouter(svcs, RouterOptions{Tokens: tokens, Now: func() time.Time { return ts.now }})
	ts.staff = ts.token(900, "desk", security.RolePatron, security.RoleStaff)
	ts.patron = ts.token(1, "ada", security.RolePatron)
	ts.patron2 = ts.token(2, "bob", security.RolePatron)

	ctx := context.Background()
	for _, name := range []string{"ada", "bob"} {
		require.NoError(t, store.Patrons().Create(ctx, &domain.Patron{Name: name, Email: name + "@example.org", PlanID: 1, Status: domain.PatronStatusActive}))
	}
	for _, barcode := range []string{"B-1", "B-2"} {
		require.NoError(t, store.Items().Create(ctx, &domain.Item{Barcode: barcode, Title: barcode, Status: domain.ItemStatusAvailable}))
	}
	return ts
}

func (ts *testServer) token(id int32, name string, roles ...string) string {
	token, _, err := ts.tokens.GenerateAccessToken(id, name, roles)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRouter_Auth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

	rr = ts.do(http.MethodPost, "/circulation/checkout", "", checkoutRequest{PatronID: 1, ItemID: 1})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(http.MethodPost, "/circulation/checkout", "not-a-token", checkoutRequest{PatronID: 1, ItemID: 1})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(http.MethodPost, "/circulation/checkout", ts.patron, checkoutRequest{PatronID: 1, ItemID: 1})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "FORBIDDEN", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodGet, "/policy/plans", ts.patron, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	plans := decode[struct {
		Plans []planResponse `json:"plans"`
	}](t, rr)
	require.Len(t, plans.Plans, 1)
	assert.Equal(t, int32(14), plans.Plans[0].LoanDays)
}

func TestRouter_CirculationFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/circulation/checkout", ts.staff, checkoutRequest{PatronID: 1, ItemID: 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decode[checkoutResponse](t, rr)
	assert.Equal(t, "2026-05-18", out.DueDate)

	rr = ts.do(http.MethodPost, "/circulation/checkout", ts.staff, checkoutRequest{PatronID: 2, ItemID: 1})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ITEM_UNAVAILABLE", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodPost, "/circulation/checkout", ts.staff, map[string]any{"patron_id": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	path := fmt.Sprintf("/circulation/borrowings/%d", out.BorrowingID)
	rr = ts.do(http.MethodPost, path+"/renew", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	renewed := decode[renewResponse](t, rr)
	assert.Equal(t, "2026-06-01", renewed.DueDate)
	assert.Equal(t, int32(1), renewed.RenewalCount)
	require.NotNil(t, renewed.RenewalsRemaining)
	assert.Equal(t, int32(1), *renewed.RenewalsRemaining)

	rr = ts.do(http.MethodGet, "/circulation/borrowings?status=overdue", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decode[borrowingListResponse](t, rr).Total)

	ts.now = time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC)
	rr = ts.do(http.MethodPost, path+"/return", ts.staff, returnRequest{ReturnDate: "2026-06-04"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	returned := decode[returnResponse](t, rr)
	assert.Equal(t, int32(3), returned.OverdueDays)
	assert.Equal(t, int64(75), returned.LateFeeCents)
	assert.InDelta(t, 0.75, returned.LateFee, 1e-9)

	rr = ts.do(http.MethodPost, path+"/return", ts.staff, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "BORROWING_NOT_ACTIVE", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodPost, path+"/return", ts.staff, returnRequest{ReturnDate: "next week"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodGet, "/circulation/borrowings?patron_id=1", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[borrowingListResponse](t, rr)
	require.Len(t, list.Borrowings, 1)
	assert.Equal(t, domain.BorrowingStatusReturned, list.Borrowings[0].Status)
	assert.False(t, list.Borrowings[0].IsOverdue)

	rr = ts.do(http.MethodGet, "/circulation/items/by-barcode/B-2", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "B-2", decode[domain.Item](t, rr).Barcode)

	rr = ts.do(http.MethodPatch, "/circulation/patrons/2/status", ts.staff, map[string]string{"action": "freeze"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(http.MethodPost, "/circulation/checkout", ts.staff, checkoutRequest{PatronID: 2, ItemID: 2})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "PATRON_NOT_ACTIVE", decode[ErrorResponse](t, rr).Code)
}

func TestRouter_ReturnDate(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/circulation/checkout", ts.staff, checkoutRequest{PatronID: 1, ItemID: 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	path := fmt.Sprintf("/circulation/borrowings/%d/return", decode[checkoutResponse](t, rr).BorrowingID)

	rr = ts.do(http.MethodPost, path, ts.staff, returnRequest{ReturnDate: "2026-06-01"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodPost, path, ts.staff, returnRequest{ReturnDate: "2026-05-01"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodGet, "/circulation/borrowings?patron_id=1&status=active", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), decode[borrowingListResponse](t, rr).Total)

	// Due 2026-05-18 09:00; a bare date on the due day is midnight, before the due time.
	ts.now = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	rr = ts.do(http.MethodPost, path, ts.staff, returnRequest{ReturnDate: "2026-05-18"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	returned := decode[returnResponse](t, rr)
	assert.Zero(t, returned.OverdueDays)
	assert.Zero(t, returned.LateFeeCents)
}

func TestRouter_Holds(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/circulation/holds", ts.patron, map[string]any{"item_id": 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	hold := decode[domain.Hold](t, rr)
	assert.Equal(t, int32(1), hold.PatronID)

	rr = ts.do(http.MethodDelete, fmt.Sprintf("/circulation/holds/%d", hold.ID), ts.patron2, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(http.MethodDelete, fmt.Sprintf("/circulation/holds/%d", hold.ID), ts.patron, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRouter_ModerationFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/content/blog_post", ts.patron, map[string]any{
		"title":   "Summer Reading",
		"content": "<p>Picks</p>",
		"submit":  true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sub := decode[struct {
		ID     int32                   `json:"id"`
		Status domain.SubmissionStatus `json:"status"`
	}](t, rr)
	assert.Equal(t, domain.SubmissionStatusPending, sub.Status)

	rr = ts.do(http.MethodGet, "/moderation/blog_post?status=pending", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	queue := decode[struct {
		Total int `json:"total"`
	}](t, rr)
	assert.Equal(t, 1, queue.Total)

	action := fmt.Sprintf("/moderation/blog_post/%d/request_changes", sub.ID)
	rr = ts.do(http.MethodPost, action, ts.staff, map[string]string{"notes": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "NOTES_REQUIRED", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodPost, action, ts.patron, map[string]string{"notes": "shorten intro"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(http.MethodPost, action, ts.staff, map[string]string{"notes": "shorten intro"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.SubmissionStatusChangesRequested, decode[submissionStatusResponse](t, rr).Status)

	rr = ts.do(http.MethodPost, fmt.Sprintf("/content/blog_post/%d/resubmit", sub.ID), ts.patron2, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(http.MethodPost, fmt.Sprintf("/content/blog_post/%d/resubmit", sub.ID), ts.patron, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.SubmissionStatusPending, decode[submissionStatusResponse](t, rr).Status)

	rr = ts.do(http.MethodPost, fmt.Sprintf("/moderation/blog_post/%d/approve", sub.ID), ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.SubmissionStatusPublished, decode[submissionStatusResponse](t, rr).Status)

	rr = ts.do(http.MethodPost, fmt.Sprintf("/moderation/blog_post/%d/approve", sub.ID), ts.staff, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[ErrorResponse](t, rr).Code)

	rr = ts.do(http.MethodPost, fmt.Sprintf("/moderation/blog_post/%d/submit", sub.ID), ts.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodGet, "/moderation/poetry", ts.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodGet, "/moderation/stats", ts.staff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[domain.ModerationStats](t, rr)
	assert.Equal(t, int32(1), stats.TotalPublishedPosts)
	assert.InDelta(t, 0.5, stats.ApprovalRate, 1e-9)

	rr = ts.do(http.MethodGet, "/notifications", ts.patron, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	notes := decode[struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int32                 `json:"total"`
		UnreadCount   int32                 `json:"unread_count"`
	}](t, rr)
	assert.Equal(t, int32(3), notes.Total)
	assert.Equal(t, int32(3), notes.UnreadCount)
}

func TestRouter_MyBorrowings(t *testing.T) {
	ts := newTestServer(t)

	for _, req := range []checkoutRequest{{PatronID: 1, ItemID: 1}, {PatronID: 2, ItemID: 2}} {
		rr := ts.do(http.MethodPost, "/circulation/checkout", ts.staff, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := ts.do(http.MethodGet, "/circulation/borrowings", ts.patron, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	ts.now = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	rr = ts.do(http.MethodGet, "/circulation/my-borrowings?patron_id=2", ts.patron, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	list := decode[borrowingListResponse](t, rr)
	require.Len(t, list.Borrowings, 1)
	assert.Equal(t, int32(1), list.Borrowings[0].PatronID)
	assert.True(t, list.Borrowings[0].IsOverdue)

	rr = ts.do(http.MethodGet, "/circulation/my-borrowings?status=returned", ts.patron2, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decode[borrowingListResponse](t, rr).Total)

	rr = ts.do(http.MethodGet, "/circulation/my-borrowings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_NotificationReadState(t *testing.T) {
	ts := newTestServer(t)

	for _, req := range []checkoutRequest{{PatronID: 1, ItemID: 1}, {PatronID: 1, ItemID: 2}} {
		rr := ts.do(http.MethodPost, "/circulation/checkout", ts.staff, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	type notificationList struct {
		Notifications []domain.Notification `json:"notifications"`
		UnreadCount   int32                 `json:"unread_count"`
	}
	rr := ts.do(http.MethodGet, "/notifications", ts.patron, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	notes := decode[notificationList](t, rr)
	require.Len(t, notes.Notifications, 2)
	assert.Equal(t, int32(2), notes.UnreadCount)

	read := fmt.Sprintf("/notifications/%d/read", notes.Notifications[0].ID)
	rr = ts.do(http.MethodPost, read, ts.patron2, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodPost, read, ts.patron, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(http.MethodGet, "/notifications", ts.patron, nil)
	assert.Equal(t, int32(1), decode[notificationList](t, rr).UnreadCount)

	rr = ts.do(http.MethodPost, "/notifications/read-all", ts.patron, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), decode[map[string]int32](t, rr)["marked"])

	rr = ts.do(http.MethodGet, "/notifications", ts.patron, nil)
	assert.Zero(t, decode[notificationList](t, rr).UnreadCount)
}

func TestRouter_Token(t *testing.T) {
	tokens := security.NewTokenManager("router-test-secret-0123456789abcdef", time.Hour)
	router := NewRouter(Services{Auth: service.NewAuthService([]config.AccountConfig{}, tokens)}, RouterOptions{Tokens: tokens})

	body := bytes.NewBufferString(`{"username":"desk","password":"wrong"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/token", body))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[ErrorResponse](t, rr).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrBorrowLimitReached, http.StatusForbidden, "BORROW_LIMIT_REACHED"},
		{domain.ErrRenewalLimitReached, http.StatusForbidden, "RENEWAL_LIMIT_REACHED"},
		{domain.ErrRenewalBlocked, http.StatusConflict, "RENEWAL_BLOCKED"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.NotFound("item", 7), http.StatusNotFound, "NOT_FOUND"},
		{domain.Invalid("bad"), http.StatusBadRequest, "VALIDATION"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rr).Code)
		})
	}
}
