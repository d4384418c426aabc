package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/security"
	"library-circulation-backend/internal/service"
)

// Services are the engine operations exposed over REST.
type Services struct {
	Circulation   service.CirculationService
	Moderation    service.ModerationService
	Submissions   service.SubmissionService
	Policy        service.PolicyService
	Auth          service.AuthService
	Notifications service.NotificationService
}

type RouterOptions struct {
	Tokens         security.TokenManager
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
	RateLimiter    *RateLimiter
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// NewRouter names every route; the auth middleware looks the name up in
// config.EndpointSecurityConfig.
func NewRouter(svcs Services, opts RouterOptions) *mux.Router {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	circulation := NewCirculationHandler(svcs.Circulation, now)
	moderation := NewModerationHandler(svcs.Moderation, now)
	content := NewContentHandler(svcs.Submissions, now)
	account := NewAccountHandler(svcs.Auth, svcs.Policy, svcs.Notifications)

	r := mux.NewRouter()
	r.Use(recoveryMiddleware, requestIDMiddleware, loggingMiddleware(m))
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware)
	}
	r.Use(authMiddleware(opts.Tokens))

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet).Name("healthz")
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet).Name("metrics")
	}
	r.HandleFunc("/auth/token", account.Token).Methods(http.MethodPost).Name("auth.token")
	r.HandleFunc("/notifications", account.ListNotifications).Methods(http.MethodGet).Name("notifications.list")
	r.HandleFunc("/notifications/read-all", account.MarkAllNotificationsRead).Methods(http.MethodPost).Name("notifications.read_all")
	r.HandleFunc("/notifications/{id:[0-9]+}/read", account.MarkNotificationRead).Methods(http.MethodPost).Name("notifications.read")

	r.HandleFunc("/policy/plans", account.ListPlans).Methods(http.MethodGet).Name("policy.plans.list")
	r.HandleFunc("/policy/plans/{id:[0-9]+}", account.GetPlan).Methods(http.MethodGet).Name("policy.plans.get")

	c := r.PathPrefix("/circulation").Subrouter()
	c.HandleFunc("/checkout", circulation.Checkout).Methods(http.MethodPost).Name("circulation.checkout")
	c.HandleFunc("/my-borrowings", circulation.MyBorrowings).Methods(http.MethodGet).Name("circulation.my_borrowings")
	c.HandleFunc("/borrowings", circulation.ListBorrowings).Methods(http.MethodGet).Name("circulation.borrowings")
	c.HandleFunc("/borrowings/overdue", circulation.ListOverdue).Methods(http.MethodGet).Name("circulation.overdue")
	c.HandleFunc("/borrowings/{id:[0-9]+}/renew", circulation.Renew).Methods(http.MethodPost).Name("circulation.renew")
	c.HandleFunc("/borrowings/{id:[0-9]+}/return", circulation.Return).Methods(http.MethodPost).Name("circulation.return")
	c.HandleFunc("/borrowings/{id:[0-9]+}/lost", circulation.MarkLost).Methods(http.MethodPost).Name("circulation.lost")
	c.HandleFunc("/items/by-barcode/{barcode}", circulation.GetItemByBarcode).Methods(http.MethodGet).Name("circulation.item.barcode")
	c.HandleFunc("/items/{id:[0-9]+}/status", circulation.SetItemStatus).Methods(http.MethodPatch).Name("circulation.item.status")
	c.HandleFunc("/patrons/{id:[0-9]+}/status", circulation.SetPatronStatus).Methods(http.MethodPatch).Name("circulation.patron.status")
	c.HandleFunc("/holds", circulation.PlaceHold).Methods(http.MethodPost).Name("holds.place")
	c.HandleFunc("/holds/{id:[0-9]+}", circulation.CancelHold).Methods(http.MethodDelete).Name("holds.cancel")

	mod := r.PathPrefix("/moderation").Subrouter()
	mod.HandleFunc("/stats", moderation.Stats).Methods(http.MethodGet).Name("moderation.stats")
	mod.HandleFunc("/{category}", moderation.Queue).Methods(http.MethodGet).Name("moderation.queue")
	mod.HandleFunc("/{category}/{id:[0-9]+}/{action}", moderation.Act).Methods(http.MethodPost).Name("moderation.action")

	ct := r.PathPrefix("/content/{category}").Subrouter()
	ct.HandleFunc("", content.Create).Methods(http.MethodPost).Name("content.create")
	ct.HandleFunc("", content.ListMine).Methods(http.MethodGet).Name("content.list")
	ct.HandleFunc("/{id:[0-9]+}", content.Edit).Methods(http.MethodPut).Name("content.edit")
	ct.HandleFunc("/{id:[0-9]+}", content.Delete).Methods(http.MethodDelete).Name("content.delete")
	ct.HandleFunc("/{id:[0-9]+}/submit", content.Submit).Methods(http.MethodPost).Name("content.submit")
	ct.HandleFunc("/{id:[0-9]+}/resubmit", content.Resubmit).Methods(http.MethodPost).Name("content.resubmit")

	return r
}
