package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
)

const statsWindow = 30 * 24 * time.Hour

type moderationService struct {
	store   repository.Store
	metrics metrics.MetricsCollector
}

func NewModerationService(store repository.Store, m metrics.MetricsCollector) ModerationService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &moderationService{store: store, metrics: m}
}

func (s *moderationService) Approve(ctx context.Context, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error) {
	return s.review(ctx, domain.ActionApprove, reviewerID, category, submissionID, notes, now)
}

func (s *moderationService) Reject(ctx context.Context, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error) {
	return s.review(ctx, domain.ActionReject, reviewerID, category, submissionID, notes, now)
}

func (s *moderationService) RequestChanges(ctx context.Context, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error) {
	return s.review(ctx, domain.ActionRequestChanges, reviewerID, category, submissionID, notes, now)
}

func (s *moderationService) review(ctx context.Context, action domain.ModerationAction, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error) {
	method := "moderationService." + string(action)
	logger.EnterMethod(method, "category", category, "submissionID", submissionID, "reviewerID", reviewerID)
	start := time.Now()

	notes = strings.TrimSpace(notes)
	var sub *domain.Submission
	err := func() error {
		if action.NotesRequired() && notes == "" {
			return domain.ErrNotesRequired
		}
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			current, err := getSubmission(ctx, tx, category, submissionID)
			if err != nil {
				return err
			}
			rules, err := tx.CategoryRules().Get(ctx, category)
			if err != nil {
				return err
			}
			if err := rules.Validate(); err != nil {
				return err
			}
			if action == domain.ActionApprove && rules.ApproveNotesRequired && notes == "" {
				return domain.ErrNotesRequired
			}

			to, err := domain.NextStatus(current.Status, action, current.Category.PublishesOnApprove())
			if err != nil {
				return err
			}
			from := current.Status

			current.Status = to
			current.ReviewedBy = &reviewerID
			current.ReviewedAt = &now
			current.UpdatedAt = now
			if notes != "" {
				current.ReviewerNotes = &notes
			}
			if to == domain.SubmissionStatusPublished {
				current.PublishedAt = &now
			}
			updated, err := tx.Submissions().Update(ctx, current)
			if err != nil {
				return err
			}
			if !updated {
				return domain.ErrConflict
			}

			if err := recordAudit(ctx, tx, transition{domain.EntitySubmission, current.ID, reviewerID, string(action), string(from), string(to), notes}, now); err != nil {
				return err
			}
			sub = current
			return notifyAuthor(ctx, tx, current, notes, now)
		})
	}()

	s.metrics.RecordOperation("moderation_"+string(action), err, time.Since(start))
	if err != nil {
		logger.ExitMethodWithError(method, err, "submissionID", submissionID)
		return nil, err
	}
	logger.ExitMethod(method, "submissionID", submissionID, "status", sub.Status)
	return sub, nil
}

// getSubmission treats a category mismatch as not found so that a path like
// /moderation/testimonial/{id} cannot act on a blog post.
func getSubmission(ctx context.Context, tx repository.Tx, category domain.Category, submissionID int32) (*domain.Submission, error) {
	sub, err := tx.Submissions().GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Category != category {
		return nil, domain.NotFound(string(category), submissionID)
	}
	return sub, nil
}

// notifyAuthor enqueues the single outcome notification for the submission's new status.
func notifyAuthor(ctx context.Context, tx repository.Tx, sub *domain.Submission, notes string, now time.Time) error {
	var (
		typ     domain.NotificationType
		title   string
		message string
	)
	label := sub.Title()
	switch sub.Status {
	case domain.SubmissionStatusPending:
		typ, title = domain.NotificationSubmitted, "Submission received"
		message = fmt.Sprintf("%q is waiting for review.", label)
	case domain.SubmissionStatusApproved:
		typ, title = domain.NotificationApproved, "Submission approved"
		message = fmt.Sprintf("%q has been approved.", label)
	case domain.SubmissionStatusPublished:
		typ, title = domain.NotificationPublished, "Post published"
		message = fmt.Sprintf("%q is now published.", label)
	case domain.SubmissionStatusRejected:
		typ, title = domain.NotificationRejected, "Submission not accepted"
		message = fmt.Sprintf("%q was not accepted: %s", label, notes)
	case domain.SubmissionStatusChangesRequested:
		typ, title = domain.NotificationChangesRequested, "Changes requested"
		message = fmt.Sprintf("A reviewer asked for changes to %q: %s", label, notes)
	default:
		return fmt.Errorf("no notification for submission status %s", sub.Status)
	}
	return enqueueNotification(ctx, tx, sub.AuthorID, typ, title, message,
		map[string]string{"submission_id": itoa(sub.ID), "category": string(sub.Category), "status": string(sub.Status)},
		now)
}

func (s *moderationService) PendingQueue(ctx context.Context, category domain.Category) ([]domain.Submission, error) {
	return s.store.Submissions().List(ctx, domain.SubmissionFilter{
		Category: category,
		Status:   domain.SubmissionStatusPending,
	})
}

func (s *moderationService) Stats(ctx context.Context, now time.Time) (*domain.ModerationStats, error) {
	const method = "moderationService.Stats"
	logger.EnterMethod(method)

	pending, err := s.store.Submissions().CountByStatus(ctx, domain.SubmissionStatusPending)
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return nil, err
	}
	for _, c := range []domain.Category{domain.CategoryBlogPost, domain.CategoryBookSuggestion, domain.CategoryTestimonial} {
		if _, ok := pending[c]; !ok {
			pending[c] = 0
		}
	}

	published, err := s.store.Submissions().CountByStatus(ctx, domain.SubmissionStatusPublished)
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return nil, err
	}

	actions, err := s.store.Audit().CountActionsSince(ctx, domain.EntitySubmission, now.Add(-statsWindow))
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return nil, err
	}
	approved := actions[string(domain.ActionApprove)]
	decided := approved + actions[string(domain.ActionReject)] + actions[string(domain.ActionRequestChanges)]

	stats := &domain.ModerationStats{
		PendingCounts:       pending,
		TotalPublishedPosts: published[domain.CategoryBlogPost],
	}
	if decided > 0 {
		stats.ApprovalRate = float64(approved) / float64(decided)
	}
	logger.ExitMethod(method, "approvalRate", stats.ApprovalRate)
	return stats, nil
}
