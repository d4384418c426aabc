package postgres

import (
	"context"
	"fmt"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

type patronRepository struct {
	q Querier
}

func NewPatronRepository(q Querier) repository.PatronRepository {
	return &patronRepository{q: q}
}

func (r *patronRepository) Create(ctx context.Context, p *domain.Patron) error {
	query := `INSERT INTO patrons (name, email, plan_id, status, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return r.q.QueryRowContext(ctx, query, p.Name, p.Email, p.PlanID, p.Status, p.CreatedAt).Scan(&p.ID)
}

func (r *patronRepository) GetByID(ctx context.Context, id int32) (*domain.Patron, error) {
	return r.get(ctx, `SELECT id, name, email, plan_id, status, created_at FROM patrons WHERE id = $1`, id)
}

func (r *patronRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Patron, error) {
	return r.get(ctx, `SELECT id, name, email, plan_id, status, created_at FROM patrons WHERE id = $1 FOR UPDATE`, id)
}

func (r *patronRepository) get(ctx context.Context, query string, id int32) (*domain.Patron, error) {
	p := &domain.Patron{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email, &p.PlanID, &p.Status, &p.CreatedAt)
	if isNoRows(err) {
		return nil, domain.NotFound("patron", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patronRepository) UpdateStatus(ctx context.Context, id int32, status domain.PatronStatus) error {
	res, err := r.q.ExecContext(ctx, `UPDATE patrons SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update patron status: %w", domain.NotFound("patron", id))
	}
	return nil
}
