package memory

import (
	"context"
	"slices"
	"time"

	"library-circulation-backend/internal/domain"
)

type categoryRuleRepository struct{ v *view }

func (r *categoryRuleRepository) Get(_ context.Context, category domain.Category) (*domain.CategoryRules, error) {
	st, done := r.v.begin()
	defer done()
	rules, ok := st.rules[category]
	if !ok {
		return nil, domain.NotFound("category rules", category)
	}
	return &rules, nil
}

type submissionRepository struct{ v *view }

func (r *submissionRepository) Create(_ context.Context, s *domain.Submission) error {
	st, done := r.v.begin()
	defer done()
	s.ID = st.next("submissions")
	s.Version = 1
	st.submissions[s.ID] = *s
	return nil
}

func (r *submissionRepository) GetByID(_ context.Context, id int32) (*domain.Submission, error) {
	st, done := r.v.begin()
	defer done()
	s, ok := st.submissions[id]
	if !ok {
		return nil, domain.NotFound("submission", id)
	}
	return &s, nil
}

func (r *submissionRepository) Update(_ context.Context, s *domain.Submission) (bool, error) {
	st, done := r.v.begin()
	defer done()
	stored, ok := st.submissions[s.ID]
	if !ok || stored.Version != s.Version {
		return false, nil
	}
	s.Version++
	st.submissions[s.ID] = *s
	return true, nil
}

func (r *submissionRepository) Delete(_ context.Context, id int32) error {
	st, done := r.v.begin()
	defer done()
	delete(st.submissions, id)
	return nil
}

func (r *submissionRepository) List(_ context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	st, done := r.v.begin()
	defer done()
	var out []domain.Submission
	for _, s := range st.submissions {
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		if filter.AuthorID != nil && s.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b domain.Submission) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (r *submissionRepository) CountByStatus(_ context.Context, status domain.SubmissionStatus) (map[domain.Category]int32, error) {
	st, done := r.v.begin()
	defer done()
	counts := make(map[domain.Category]int32)
	for _, s := range st.submissions {
		if s.Status == status {
			counts[s.Category]++
		}
	}
	return counts, nil
}

func (r *submissionRepository) SlugExists(_ context.Context, slug string, excludeID int32) (bool, error) {
	st, done := r.v.begin()
	defer done()
	for _, s := range st.submissions {
		if p, ok := s.Payload.(domain.BlogPost); ok && s.ID != excludeID && p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

type auditRepository struct{ v *view }

func (r *auditRepository) Create(_ context.Context, e *domain.AuditEntry) error {
	st, done := r.v.begin()
	defer done()
	e.ID = st.next("audit_log")
	st.audit = append(st.audit, *e)
	return nil
}

func (r *auditRepository) ListByEntity(_ context.Context, entity domain.EntityType, id int32) ([]domain.AuditEntry, error) {
	st, done := r.v.begin()
	defer done()
	var out []domain.AuditEntry
	for _, e := range st.audit {
		if e.EntityType == entity && e.EntityID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *auditRepository) CountActionsSince(_ context.Context, entity domain.EntityType, since time.Time) (map[string]int32, error) {
	st, done := r.v.begin()
	defer done()
	counts := make(map[string]int32)
	for _, e := range st.audit {
		if e.EntityType == entity && !e.CreatedAt.Before(since) {
			counts[e.Action]++
		}
	}
	return counts, nil
}

type notificationRepository struct{ v *view }

func (r *notificationRepository) Create(_ context.Context, n *domain.Notification) error {
	st, done := r.v.begin()
	defer done()
	n.ID = st.next("notifications")
	st.notifications = append(st.notifications, *n)
	return nil
}

func (r *notificationRepository) ListUndelivered(_ context.Context, limit int32) ([]domain.Notification, error) {
	st, done := r.v.begin()
	defer done()
	var out []domain.Notification
	for _, n := range st.notifications {
		if n.DeliveredAt == nil {
			out = append(out, n)
			if limit > 0 && int32(len(out)) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *notificationRepository) MarkDelivered(_ context.Context, id int32, at time.Time) error {
	st, done := r.v.begin()
	defer done()
	for i := range st.notifications {
		if st.notifications[i].ID == id && st.notifications[i].DeliveredAt == nil {
			st.notifications[i].DeliveredAt = &at
		}
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(_ context.Context, recipientID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	st, done := r.v.begin()
	defer done()
	var matched []domain.Notification
	for i := len(st.notifications) - 1; i >= 0; i-- {
		if st.notifications[i].RecipientID == recipientID {
			matched = append(matched, st.notifications[i])
		}
	}
	total := int32(len(matched))
	start := min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return matched[start:end], total, nil
}

func (r *notificationRepository) MarkRead(_ context.Context, recipientID, id int32) (bool, error) {
	st, done := r.v.begin()
	defer done()
	for i := range st.notifications {
		if n := &st.notifications[i]; n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r *notificationRepository) MarkAllRead(_ context.Context, recipientID int32) (int32, error) {
	st, done := r.v.begin()
	defer done()
	var marked int32
	for i := range st.notifications {
		if n := &st.notifications[i]; n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			marked++
		}
	}
	return marked, nil
}

func (r *notificationRepository) CountUnread(_ context.Context, recipientID int32) (int32, error) {
	st, done := r.v.begin()
	defer done()
	var unread int32
	for _, n := range st.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			unread++
		}
	}
	return unread, nil
}
