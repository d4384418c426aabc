package postgres

import (
	"context"
	"fmt"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type borrowingRepository struct {
	q Querier
}

func NewBorrowingRepository(q Querier) repository.BorrowingRepository {
	return &borrowingRepository{q: q}
}

const borrowingColumns = `id, item_id, patron_id, checkout_at, due_at, returned_at, renewal_count, status, late_fee_cents, version`

type scanner interface {
	Scan(dest ...any) error
}

func scanBorrowing(s scanner, b *domain.Borrowing) error {
	return s.Scan(&b.ID, &b.ItemID, &b.PatronID, &b.CheckoutAt, &b.DueAt, &b.ReturnedAt, &b.RenewalCount, &b.Status, &b.LateFeeCents, &b.Version)
}

func (r *borrowingRepository) Create(ctx context.Context, b *domain.Borrowing) error {
	query := `INSERT INTO borrowings (item_id, patron_id, checkout_at, due_at, renewal_count, status, late_fee_cents, version)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, 1) RETURNING id, version`
	logger.StoreCall("INSERT", "borrowings", "itemID", b.ItemID, "patronID", b.PatronID)
	err := r.q.QueryRowContext(ctx, query, b.ItemID, b.PatronID, b.CheckoutAt, b.DueAt, b.RenewalCount, b.Status, b.LateFeeCents).Scan(&b.ID, &b.Version)
	logger.StoreResult("INSERT", 1, err, "borrowingID", b.ID)
	return err
}

func (r *borrowingRepository) GetByID(ctx context.Context, id int32) (*domain.Borrowing, error) {
	b := &domain.Borrowing{}
	query := `SELECT ` + borrowingColumns + ` FROM borrowings WHERE id = $1`
	err := scanBorrowing(r.q.QueryRowContext(ctx, query, id), b)
	if isNoRows(err) {
		return nil, domain.NotFound("borrowing", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *borrowingRepository) Update(ctx context.Context, b *domain.Borrowing) (bool, error) {
	query := `UPDATE borrowings
	          SET due_at = $1, returned_at = $2, renewal_count = $3, status = $4, late_fee_cents = $5, version = version + 1
	          WHERE id = $6 AND version = $7`
	res, err := r.q.ExecContext(ctx, query, b.DueAt, b.ReturnedAt, b.RenewalCount, b.Status, b.LateFeeCents, b.ID, b.Version)
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
	b.Version++
	return true, nil
}

func (r *borrowingRepository) CountActiveByPatron(ctx context.Context, patronID int32) (int32, error) {
	var count int32
	query := `SELECT count(*) FROM borrowings WHERE patron_id = $1 AND status = 'ACTIVE'`
	err := r.q.QueryRowContext(ctx, query, patronID).Scan(&count)
	return count, err
}

func (r *borrowingRepository) CountActiveByItem(ctx context.Context, itemID int32) (int32, error) {
	var count int32
	query := `SELECT count(*) FROM borrowings WHERE item_id = $1 AND status = 'ACTIVE'`
	err := r.q.QueryRowContext(ctx, query, itemID).Scan(&count)
	return count, err
}

func (r *borrowingRepository) List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, int32, error) {
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	where := ` FROM borrowings WHERE 1=1`
	var args []any
	if filter.PatronID != nil {
		args = append(args, *filter.PatronID)
		where += fmt.Sprintf(" AND patron_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var count int32
	if err := r.q.QueryRowContext(ctx, "SELECT count(*)"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + borrowingColumns + where +
		fmt.Sprintf(" ORDER BY checkout_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Borrowing
	for rows.Next() {
		var b domain.Borrowing
		if err := scanBorrowing(rows, &b); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, count, rows.Err()
}

func (r *borrowingRepository) ListActiveDueBefore(ctx context.Context, t time.Time) ([]domain.Borrowing, error) {
	query := `SELECT ` + borrowingColumns + ` FROM borrowings WHERE status = 'ACTIVE' AND due_at < $1 ORDER BY due_at ASC`
	rows, err := r.q.QueryContext(ctx, query, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Borrowing
	for rows.Next() {
		var b domain.Borrowing
		if err := scanBorrowing(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
