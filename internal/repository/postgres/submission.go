package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

type submissionRepository struct {
	q Querier
}

func NewSubmissionRepository(q Querier) repository.SubmissionRepository {
	return &submissionRepository{q: q}
}

const submissionColumns = `id, category, author_id, status, payload, reviewer_notes, reviewed_by, reviewed_at, published_at, created_at, updated_at, version`

func scanSubmission(s scanner) (*domain.Submission, error) {
	var (
		sub domain.Submission
		raw []byte
	)
	err := s.Scan(&sub.ID, &sub.Category, &sub.AuthorID, &sub.Status, &raw, &sub.ReviewerNotes, &sub.ReviewedBy, &sub.ReviewedAt, &sub.PublishedAt, &sub.CreatedAt, &sub.UpdatedAt, &sub.Version)
	if err != nil {
		return nil, err
	}
	payload, err := domain.DecodePayload(sub.Category, raw)
	if err != nil {
		return nil, fmt.Errorf("decode submission %d payload: %w", sub.ID, err)
	}
	sub.Payload = payload
	return &sub, nil
}

// slugOf keeps blog slugs in their own unique column.
func slugOf(s *domain.Submission) sql.NullString {
	if p, ok := s.Payload.(domain.BlogPost); ok && p.Slug != "" {
		return sql.NullString{String: p.Slug, Valid: true}
	}
	return sql.NullString{}
}

func (r *submissionRepository) Create(ctx context.Context, s *domain.Submission) error {
	raw, err := json.Marshal(s.Payload)
	if err != nil {
		return err
	}
	query := `INSERT INTO submissions (category, author_id, status, payload, slug, created_at, updated_at, version)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, 1) RETURNING id, version`
	return r.q.QueryRowContext(ctx, query, s.Category, s.AuthorID, s.Status, raw, slugOf(s), s.CreatedAt, s.UpdatedAt).Scan(&s.ID, &s.Version)
}

func (r *submissionRepository) GetByID(ctx context.Context, id int32) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	sub, err := scanSubmission(r.q.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, domain.NotFound("submission", id)
	}
	return sub, err
}

func (r *submissionRepository) Update(ctx context.Context, s *domain.Submission) (bool, error) {
	raw, err := json.Marshal(s.Payload)
	if err != nil {
		return false, err
	}
	query := `UPDATE submissions
	          SET status = $1, payload = $2, slug = $3, reviewer_notes = $4, reviewed_by = $5, reviewed_at = $6,
	              published_at = $7, updated_at = $8, version = version + 1
	          WHERE id = $9 AND version = $10`
	res, err := r.q.ExecContext(ctx, query, s.Status, raw, slugOf(s), s.ReviewerNotes, s.ReviewedBy, s.ReviewedAt, s.PublishedAt, s.UpdatedAt, s.ID, s.Version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	s.Version++
	return true, nil
}

func (r *submissionRepository) Delete(ctx context.Context, id int32) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	return err
}

func (r *submissionRepository) List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		query += fmt.Sprintf(" AND author_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (r *submissionRepository) CountByStatus(ctx context.Context, status domain.SubmissionStatus) (map[domain.Category]int32, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT category, count(*) FROM submissions WHERE status = $1 GROUP BY category`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Category]int32)
	for rows.Next() {
		var (
			c domain.Category
			n int32
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return counts, rows.Err()
}

func (r *submissionRepository) SlugExists(ctx context.Context, slug string, excludeID int32) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE slug = $1 AND id <> $2)`, slug, excludeID).Scan(&exists)
	return exists, err
}
