package postgres

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

type auditRepository struct {
	q Querier
}

func NewAuditRepository(q Querier) repository.AuditRepository {
	return &auditRepository{q: q}
}

func (r *auditRepository) Create(ctx context.Context, e *domain.AuditEntry) error {
	query := `INSERT INTO audit_log (entity_type, entity_id, actor_id, action, from_status, to_status, notes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return r.q.QueryRowContext(ctx, query, e.EntityType, e.EntityID, e.ActorID, e.Action, e.FromStatus, e.ToStatus, e.Notes, e.CreatedAt).Scan(&e.ID)
}

func (r *auditRepository) ListByEntity(ctx context.Context, entity domain.EntityType, id int32) ([]domain.AuditEntry, error) {
	query := `SELECT id, entity_type, entity_id, actor_id, action, from_status, to_status, notes, created_at
	          FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC, id ASC`
	rows, err := r.q.QueryContext(ctx, query, entity, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.ActorID, &e.Action, &e.FromStatus, &e.ToStatus, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *auditRepository) CountActionsSince(ctx context.Context, entity domain.EntityType, since time.Time) (map[string]int32, error) {
	query := `SELECT action, count(*) FROM audit_log WHERE entity_type = $1 AND created_at >= $2 GROUP BY action`
	rows, err := r.q.QueryContext(ctx, query, entity, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int32)
	for rows.Next() {
		var (
			action string
			n      int32
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[action] = n
	}
	return counts, rows.Err()
}
