package postgres

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type itemRepository struct {
	q Querier
}

func NewItemRepository(q Querier) repository.ItemRepository {
	return &itemRepository{q: q}
}

const itemColumns = `id, barcode, title, condition, status, status_changed_at, version`

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `INSERT INTO items (barcode, title, condition, status, status_changed_at, version)
	          VALUES ($1, $2, $3, $4, $5, 1) RETURNING id, version`
	if item.StatusChangedAt.IsZero() {
		item.StatusChangedAt = time.Now().UTC()
	}
	err := r.q.QueryRowContext(ctx, query, item.Barcode, item.Title, item.Condition, item.Status, item.StatusChangedAt).Scan(&item.ID, &item.Version)
	if isUniqueViolation(err) {
		return domain.Invalid("barcode %q already exists", item.Barcode)
	}
	return err
}

func (r *itemRepository) GetByID(ctx context.Context, id int32) (*domain.Item, error) {
	item := &domain.Item{}
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Barcode, &item.Title, &item.Condition, &item.Status, &item.StatusChangedAt, &item.Version)
	if isNoRows(err) {
		return nil, domain.NotFound("item", id)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) GetByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	item := &domain.Item{}
	query := `SELECT ` + itemColumns + ` FROM items WHERE barcode = $1`
	err := r.q.QueryRowContext(ctx, query, barcode).Scan(&item.ID, &item.Barcode, &item.Title, &item.Condition, &item.Status, &item.StatusChangedAt, &item.Version)
	if isNoRows(err) {
		return nil, domain.NotFound("item with barcode", barcode)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) CompareAndSwapStatus(ctx context.Context, id int32, from, to domain.ItemStatus, at time.Time) (bool, error) {
	query := `UPDATE items SET status = $1, status_changed_at = $2, version = version + 1
	          WHERE id = $3 AND status = $4`
	logger.StoreCall("UPDATE", "items", "itemID", id, "from", from, "to", to)
	res, err := r.q.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		logger.StoreResult("UPDATE", 0, err, "itemID", id)
		return false, err
	}
	n, err := res.RowsAffected()
	logger.StoreResult("UPDATE", n, err, "itemID", id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
