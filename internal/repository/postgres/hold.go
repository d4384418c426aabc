package postgres

import (
	"context"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

type holdRepository struct {
	q Querier
}

func NewHoldRepository(q Querier) repository.HoldRepository {
	return &holdRepository{q: q}
}

func (r *holdRepository) Create(ctx context.Context, h *domain.Hold) error {
	query := `INSERT INTO holds (item_id, patron_id, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	return r.q.QueryRowContext(ctx, query, h.ItemID, h.PatronID, h.Status, h.CreatedAt).Scan(&h.ID)
}

func (r *holdRepository) GetByID(ctx context.Context, id int32) (*domain.Hold, error) {
	h := &domain.Hold{}
	query := `SELECT id, item_id, patron_id, status, created_at FROM holds WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.ItemID, &h.PatronID, &h.Status, &h.CreatedAt)
	if isNoRows(err) {
		return nil, domain.NotFound("hold", id)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (r *holdRepository) UpdateStatus(ctx context.Context, id int32, status domain.HoldStatus) error {
	_, err := r.q.ExecContext(ctx, `UPDATE holds SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (r *holdRepository) HasPendingByOtherPatron(ctx context.Context, itemID, patronID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM holds WHERE item_id = $1 AND patron_id <> $2 AND status = 'PENDING')`
	err := r.q.QueryRowContext(ctx, query, itemID, patronID).Scan(&exists)
	return exists, err
}

// GetPendingByPatronAndItem returns nil without error when no pending hold exists.
func (r *holdRepository) GetPendingByPatronAndItem(ctx context.Context, patronID, itemID int32) (*domain.Hold, error) {
	h := &domain.Hold{}
	query := `SELECT id, item_id, patron_id, status, created_at FROM holds
	          WHERE patron_id = $1 AND item_id = $2 AND status = 'PENDING' ORDER BY created_at LIMIT 1`
	err := r.q.QueryRowContext(ctx, query, patronID, itemID).Scan(&h.ID, &h.ItemID, &h.PatronID, &h.Status, &h.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}
