package http

import (
	"net/http"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

// AccountHandler serves login, policy reads and the caller's notifications.
type AccountHandler struct {
	auth          service.AuthService
	policy        service.PolicyService
	notifications service.NotificationService
}

func NewAccountHandler(auth service.AuthService, policy service.PolicyService, notifications service.NotificationService) *AccountHandler {
	return &AccountHandler{auth: auth, policy: policy, notifications: notifications}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *AccountHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, r, domain.Invalid("username and password are required"))
		return
	}
	token, expiresAt, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

type planResponse struct {
	domain.MembershipPlan
	LoanDays int32 `json:"loan_days"`
}

func toPlanResponse(p *domain.MembershipPlan) planResponse {
	return planResponse{MembershipPlan: *p, LoanDays: p.LoanDays()}
}

func (h *AccountHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.policy.ListPlans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for i := range plans {
		out = append(out, toPlanResponse(&plans[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (h *AccountHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.policy.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(plan))
}

func (h *AccountHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 20)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, total, err := h.notifications.List(r.Context(), actorFrom(r.Context()).ID, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.notifications.UnreadCount(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(list), "total": total, "unread_count": unread})
}

func (h *AccountHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), actorFrom(r.Context()).ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	marked, err := h.notifications.MarkAllRead(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int32{"marked": marked})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
