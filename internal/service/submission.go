package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/security"
	"library-circulation-backend/internal/utils"
)

const maxSlugAttempts = 20

type submissionService struct {
	store     repository.Store
	sanitizer security.ContentSanitizer
	metrics   metrics.MetricsCollector
}

func NewSubmissionService(store repository.Store, sanitizer security.ContentSanitizer, m metrics.MetricsCollector) SubmissionService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &submissionService{store: store, sanitizer: sanitizer, metrics: m}
}

func (s *submissionService) Create(ctx context.Context, authorID int32, category domain.Category, payload domain.Payload, submit bool, now time.Time) (*domain.Submission, error) {
	const method = "submissionService.Create"
	logger.EnterMethod(method, "authorID", authorID, "category", category, "submit", submit)

	status := domain.SubmissionStatusDraft
	if submit {
		status = domain.SubmissionStatusPending
	}

	var sub *domain.Submission
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		clean, err := s.prepare(ctx, tx, category, payload, 0)
		if err != nil {
			return err
		}
		sub = &domain.Submission{
			Category:  category,
			AuthorID:  authorID,
			Status:    status,
			Payload:   clean,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Submissions().Create(ctx, sub)
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "authorID", authorID)
		return nil, err
	}
	logger.ExitMethod(method, "submissionID", sub.ID, "status", sub.Status)
	return sub, nil
}

func (s *submissionService) Edit(ctx context.Context, authorID int32, category domain.Category, submissionID int32, payload domain.Payload, now time.Time) (*domain.Submission, error) {
	const method = "submissionService.Edit"
	logger.EnterMethod(method, "authorID", authorID, "submissionID", submissionID)

	var sub *domain.Submission
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		current, err := getOwnSubmission(ctx, tx, authorID, category, submissionID)
		if err != nil {
			return err
		}
		if current.Status != domain.SubmissionStatusDraft && current.Status != domain.SubmissionStatusChangesRequested {
			return domain.ErrInvalidTransition
		}
		clean, err := s.prepare(ctx, tx, category, payload, current.ID)
		if err != nil {
			return err
		}
		current.Payload = clean
		current.UpdatedAt = now
		updated, err := tx.Submissions().Update(ctx, current)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrConflict
		}
		sub = current
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "submissionID", submissionID)
		return nil, err
	}
	logger.ExitMethod(method, "submissionID", submissionID)
	return sub, nil
}

func (s *submissionService) Delete(ctx context.Context, authorID int32, category domain.Category, submissionID int32) error {
	const method = "submissionService.Delete"
	logger.EnterMethod(method, "authorID", authorID, "submissionID", submissionID)

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		current, err := getOwnSubmission(ctx, tx, authorID, category, submissionID)
		if err != nil {
			return err
		}
		if current.Status != domain.SubmissionStatusDraft && current.Status != domain.SubmissionStatusRejected {
			return domain.ErrInvalidTransition
		}
		return tx.Submissions().Delete(ctx, submissionID)
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "submissionID", submissionID)
		return err
	}
	logger.ExitMethod(method, "submissionID", submissionID)
	return nil
}

func (s *submissionService) Submit(ctx context.Context, authorID int32, category domain.Category, submissionID int32, now time.Time) (*domain.Submission, error) {
	return s.authorTransition(ctx, domain.ActionSubmit, authorID, category, submissionID, now)
}

func (s *submissionService) Resubmit(ctx context.Context, authorID int32, category domain.Category, submissionID int32, now time.Time) (*domain.Submission, error) {
	return s.authorTransition(ctx, domain.ActionResubmit, authorID, category, submissionID, now)
}

func (s *submissionService) authorTransition(ctx context.Context, action domain.ModerationAction, authorID int32, category domain.Category, submissionID int32, now time.Time) (*domain.Submission, error) {
	method := "submissionService." + string(action)
	logger.EnterMethod(method, "authorID", authorID, "submissionID", submissionID)
	start := time.Now()

	var sub *domain.Submission
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		current, err := getOwnSubmission(ctx, tx, authorID, category, submissionID)
		if err != nil {
			return err
		}
		to, err := domain.NextStatus(current.Status, action, false)
		if err != nil {
			return err
		}
		from := current.Status
		current.Status = to
		current.UpdatedAt = now
		updated, err := tx.Submissions().Update(ctx, current)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrConflict
		}
		if err := recordAudit(ctx, tx, transition{domain.EntitySubmission, current.ID, authorID, string(action), string(from), string(to), ""}, now); err != nil {
			return err
		}
		sub = current
		return notifyAuthor(ctx, tx, current, "", now)
	})

	s.metrics.RecordOperation("content_"+string(action), err, time.Since(start))
	if err != nil {
		logger.ExitMethodWithError(method, err, "submissionID", submissionID)
		return nil, err
	}
	logger.ExitMethod(method, "submissionID", submissionID, "status", sub.Status)
	return sub, nil
}

func (s *submissionService) ListMine(ctx context.Context, authorID int32, category domain.Category, status domain.SubmissionStatus) ([]domain.Submission, error) {
	return s.store.Submissions().List(ctx, domain.SubmissionFilter{
		Category: category,
		AuthorID: &authorID,
		Status:   status,
	})
}

func getOwnSubmission(ctx context.Context, tx repository.Tx, authorID int32, category domain.Category, submissionID int32) (*domain.Submission, error) {
	sub, err := getSubmission(ctx, tx, category, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.AuthorID != authorID {
		return nil, domain.ErrForbidden
	}
	return sub, nil
}

// prepare validates and sanitises payload against the category rules. For
// blog posts it also assigns a slug unique among other submissions.
func (s *submissionService) prepare(ctx context.Context, tx repository.Tx, category domain.Category, payload domain.Payload, selfID int32) (domain.Payload, error) {
	if payload == nil || payload.Category() != category {
		return nil, domain.Invalid("payload does not match category %s", category)
	}
	rules, err := tx.CategoryRules().Get(ctx, category)
	if err != nil {
		return nil, err
	}

	var body string
	switch p := payload.(type) {
	case domain.BlogPost:
		p.Title = s.sanitizer.StripTags(p.Title)
		p.Excerpt = s.sanitizer.StripTags(p.Excerpt)
		p.Content = s.sanitizer.SanitizeHTML(p.Content)
		tags := make([]string, 0, len(p.Tags))
		for _, t := range p.Tags {
			if t = strings.ToLower(s.sanitizer.StripTags(t)); t != "" {
				tags = append(tags, t)
			}
		}
		p.Tags = tags
		if err := p.Validate(); err != nil {
			return nil, err
		}
		slug, err := uniqueSlug(ctx, tx, p.Slug, p.Title, selfID)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
		body, payload = p.Content, p
	case domain.BookSuggestion:
		p.Title = s.sanitizer.StripTags(p.Title)
		p.Authors = s.sanitizer.StripTags(p.Authors)
		p.Reason = s.sanitizer.StripTags(p.Reason)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		body, payload = p.Reason, p
	case domain.Testimonial:
		p.Text = s.sanitizer.StripTags(p.Text)
		p.DisplayName = s.sanitizer.StripTags(p.DisplayName)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		body, payload = p.Text, p
	default:
		return nil, domain.Invalid("unsupported payload %T", payload)
	}

	if rules.MaxBodyLength > 0 && utf8.RuneCountInString(body) > rules.MaxBodyLength {
		return nil, domain.Invalid("body exceeds %d characters", rules.MaxBodyLength)
	}
	return payload, nil
}

func uniqueSlug(ctx context.Context, tx repository.Tx, requested, title string, selfID int32) (string, error) {
	base := utils.Slugify(requested)
	if base == "" {
		base = utils.Slugify(title)
	}
	if base == "" {
		base = "post"
	}
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := tx.Submissions().SlugExists(ctx, candidate, selfID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.Invalid("slug %q is already taken", base)
}
