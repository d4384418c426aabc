package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

// ModerationHandler serves the reviewer queue and review actions.
type ModerationHandler struct {
	svc service.ModerationService
	now func() time.Time
}

func NewModerationHandler(svc service.ModerationService, now func() time.Time) *ModerationHandler {
	return &ModerationHandler{svc: svc, now: now}
}

type submissionStatusResponse struct {
	ID     int32                   `json:"id"`
	Status domain.SubmissionStatus `json:"status"`
}

func (h *ModerationHandler) Act(w http.ResponseWriter, r *http.Request) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	action, err := domain.ParseModerationAction(mux.Vars(r)["action"])
	if err != nil || !action.ReviewerAction() {
		writeError(w, r, domain.Invalid("action must be approve, reject or request_changes"))
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reviewer := actorFrom(r.Context()).ID
	var sub *domain.Submission
	switch action {
	case domain.ActionApprove:
		sub, err = h.svc.Approve(r.Context(), reviewer, category, id, req.Notes, h.now())
	case domain.ActionReject:
		sub, err = h.svc.Reject(r.Context(), reviewer, category, id, req.Notes, h.now())
	default:
		sub, err = h.svc.RequestChanges(r.Context(), reviewer, category, id, req.Notes, h.now())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionStatusResponse{ID: sub.ID, Status: sub.Status})
}

func (h *ModerationHandler) Queue(w http.ResponseWriter, r *http.Request) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" && !strings.EqualFold(status, "pending") {
		writeError(w, r, domain.Invalid("the moderation queue lists pending submissions only"))
		return
	}
	subs, err := h.svc.PendingQueue(r.Context(), category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": nonNil(subs), "total": len(subs)})
}

func (h *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ContentHandler serves the author side of submissions.
type ContentHandler struct {
	svc service.SubmissionService
	now func() time.Time
}

func NewContentHandler(svc service.SubmissionService, now func() time.Time) *ContentHandler {
	return &ContentHandler{svc: svc, now: now}
}

// decodePayload reads the category payload from the body. A top-level
// "submit" flag is read from the same object.
func decodePayload(r *http.Request, category domain.Category) (domain.Payload, bool, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, false, err
	}
	var flags struct {
		Submit bool `json:"submit"`
	}
	if err := json.Unmarshal(body, &flags); err != nil {
		return nil, false, domain.Invalid("malformed JSON body: %v", err)
	}
	payload, err := domain.DecodePayload(category, body)
	if err != nil {
		return nil, false, err
	}
	return payload, flags.Submit, nil
}

func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload, submit, err := decodePayload(r, category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.svc.Create(r.Context(), actorFrom(r.Context()).ID, category, payload, submit, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *ContentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var status domain.SubmissionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err = domain.ParseSubmissionStatus(raw); err != nil {
			writeError(w, r, err)
			return
		}
	}
	subs, err := h.svc.ListMine(r.Context(), actorFrom(r.Context()).ID, category, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": nonNil(subs), "total": len(subs)})
}

func (h *ContentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload, _, err := decodePayload(r, category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.svc.Edit(r.Context(), actorFrom(r.Context()).ID, category, id, payload, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), actorFrom(r.Context()).ID, category, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Submit)
}

func (h *ContentHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Resubmit)
}

type authorTransition func(ctx context.Context, authorID int32, category domain.Category, id int32, now time.Time) (*domain.Submission, error)

func (h *ContentHandler) transition(w http.ResponseWriter, r *http.Request, fn authorTransition) {
	category, err := pathCategory(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := fn(r.Context(), actorFrom(r.Context()).ID, category, id, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionStatusResponse{ID: sub.ID, Status: sub.Status})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
