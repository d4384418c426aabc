package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
	"library-circulation-backend/internal/utils"
)

type CirculationHandler struct {
	svc service.CirculationService
	now func() time.Time
}

func NewCirculationHandler(svc service.CirculationService, now func() time.Time) *CirculationHandler {
	return &CirculationHandler{svc: svc, now: now}
}

type checkoutRequest struct {
	PatronID int32 `json:"patron_id"`
	ItemID   int32 `json:"item_id"`
}

type checkoutResponse struct {
	BorrowingID int32     `json:"borrowing_id"`
	DueDate     string    `json:"due_date"`
	DueAt       time.Time `json:"due_at"`
}

func (h *CirculationHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PatronID <= 0 || req.ItemID <= 0 {
		writeError(w, r, domain.Invalid("patron_id and item_id are required"))
		return
	}

	b, err := h.svc.Checkout(r.Context(), actorFrom(r.Context()).ID, req.PatronID, req.ItemID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		BorrowingID: b.ID,
		DueDate:     b.DueAt.UTC().Format(utils.DateLayout),
		DueAt:       b.DueAt,
	})
}

type renewResponse struct {
	BorrowingID       int32  `json:"borrowing_id"`
	DueDate           string `json:"due_date"`
	RenewalCount      int32  `json:"renewal_count"`
	RenewalsRemaining *int32 `json:"renewals_remaining,omitempty"`
}

func (h *CirculationHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Renew(r.Context(), actorFrom(r.Context()).ID, id, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renewResponse{
		BorrowingID:       res.Borrowing.ID,
		DueDate:           res.Borrowing.DueAt.UTC().Format(utils.DateLayout),
		RenewalCount:      res.Borrowing.RenewalCount,
		RenewalsRemaining: res.RenewalsRemaining,
	})
}

type returnRequest struct {
	ReturnDate string `json:"return_date"`
}

type returnResponse struct {
	BorrowingID  int32   `json:"borrowing_id"`
	LateFee      float64 `json:"late_fee"`
	LateFeeCents int64   `json:"late_fee_cents"`
	OverdueDays  int32   `json:"overdue_days"`
}

// Return closes a borrowing at the current time, or at return_date when a
// back-dated return is recorded. return_date may not lie in the future. A bare
// yyyy-mm-dd is midnight UTC of that day, so overdue days count whole calendar
// days past the due date and a return on the due day itself is never charged.
func (h *CirculationHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	returnedAt := now
	if req.ReturnDate != "" {
		if returnedAt, err = utils.ParseReturnDate(req.ReturnDate); err != nil {
			writeError(w, r, domain.Invalid("return_date: %v", err))
			return
		}
		if returnedAt.After(now) {
			writeError(w, r, domain.Invalid("return_date may not be in the future"))
			return
		}
	}

	res, err := h.svc.Return(r.Context(), actorFrom(r.Context()).ID, id, returnedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, returnResponse{
		BorrowingID:  res.Borrowing.ID,
		LateFee:      utils.CentsToAmount(res.LateFeeCents),
		LateFeeCents: res.LateFeeCents,
		OverdueDays:  res.OverdueDays,
	})
}

func (h *CirculationHandler) MarkLost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.svc.MarkLost(r.Context(), actorFrom(r.Context()).ID, id, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowing_id": b.ID, "status": b.Status})
}

type borrowingListResponse struct {
	Borrowings []domain.BorrowingView `json:"borrowings"`
	Total      int32                  `json:"total"`
	Page       int32                  `json:"page,omitempty"`
	PageSize   int32                  `json:"page_size,omitempty"`
}

// ListBorrowings accepts status=overdue as a read-time filter on active borrowings.
func (h *CirculationHandler) ListBorrowings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.EqualFold(q.Get("status"), "overdue") {
		h.ListOverdue(w, r)
		return
	}
	var patronID *int32
	if raw := q.Get("patron_id"); raw != "" {
		id, err := parseID(raw, "patron_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		patronID = &id
	}
	h.listBorrowings(w, r, patronID)
}

// MyBorrowings lists the caller's own borrowings; patron_id is ignored.
func (h *CirculationHandler) MyBorrowings(w http.ResponseWriter, r *http.Request) {
	actorID := actorFrom(r.Context()).ID
	h.listBorrowings(w, r, &actorID)
}

func (h *CirculationHandler) listBorrowings(w http.ResponseWriter, r *http.Request, patronID *int32) {
	q := r.URL.Query()
	filter := domain.BorrowingFilter{PatronID: patronID}
	switch status := domain.BorrowingStatus(strings.ToUpper(q.Get("status"))); status {
	case "", domain.BorrowingStatusActive, domain.BorrowingStatusReturned, domain.BorrowingStatusLost:
		filter.Status = status
	default:
		writeError(w, r, domain.Invalid("unknown borrowing status %q", q.Get("status")))
		return
	}
	var err error
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.PageSize, err = queryInt(r, "page_size", 50); err != nil {
		writeError(w, r, err)
		return
	}

	views, total, err := h.svc.ListBorrowings(r.Context(), filter, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowingListResponse{Borrowings: views, Total: total, Page: filter.Page, PageSize: filter.PageSize})
}

func (h *CirculationHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListOverdue(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowingListResponse{Borrowings: views, Total: int32(len(views))})
}

func (h *CirculationHandler) GetItemByBarcode(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItemByBarcode(r.Context(), mux.Vars(r)["barcode"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CirculationHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.svc.SetItemStatus(r.Context(), actorFrom(r.Context()).ID, id, domain.ItemStatus(strings.ToUpper(req.Status)), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CirculationHandler) SetPatronStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patron, err := h.svc.SetPatronStatus(r.Context(), actorFrom(r.Context()).ID, id, req.Action, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patron)
}

type placeHoldRequest struct {
	PatronID int32 `json:"patron_id"`
	ItemID   int32 `json:"item_id"`
}

// PlaceHold defaults patron_id to the caller so patrons may omit it.
func (h *CirculationHandler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	var req placeHoldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	if req.PatronID == 0 {
		req.PatronID = actor.ID
	}
	if req.ItemID <= 0 {
		writeError(w, r, domain.Invalid("item_id is required"))
		return
	}
	hold, err := h.svc.PlaceHold(r.Context(), actor, req.PatronID, req.ItemID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hold)
}

func (h *CirculationHandler) CancelHold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.CancelHold(r.Context(), actorFrom(r.Context()), id, h.now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
