package postgres

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type planRepository struct {
	q Querier
}

func NewPlanRepository(q Querier) repository.PlanRepository {
	return &planRepository{q: q}
}

// Loan duration is stored in whole days.
func (r *planRepository) Create(ctx context.Context, plan *domain.MembershipPlan) error {
	query := `INSERT INTO membership_plans (name, max_books, loan_duration_days, late_fee_per_day_cents, max_renewals)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.q.QueryRowContext(ctx, query, plan.Name, plan.MaxBooks, plan.LoanDays(), plan.LateFeePerDayCents, plan.MaxRenewals).Scan(&plan.ID)
}

func (r *planRepository) GetByID(ctx context.Context, id int32) (*domain.MembershipPlan, error) {
	var (
		plan domain.MembershipPlan
		days int32
	)
	query := `SELECT id, name, max_books, loan_duration_days, late_fee_per_day_cents, max_renewals FROM membership_plans WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&plan.ID, &plan.Name, &plan.MaxBooks, &days, &plan.LateFeePerDayCents, &plan.MaxRenewals)
	if isNoRows(err) {
		return nil, domain.NotFound("membership plan", id)
	}
	if err != nil {
		return nil, err
	}
	plan.LoanDuration = time.Duration(days) * 24 * time.Hour
	return &plan, nil
}

func (r *planRepository) List(ctx context.Context) ([]domain.MembershipPlan, error) {
	query := `SELECT id, name, max_books, loan_duration_days, late_fee_per_day_cents, max_renewals FROM membership_plans ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.MembershipPlan
	for rows.Next() {
		var (
			plan domain.MembershipPlan
			days int32
		)
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.MaxBooks, &days, &plan.LateFeePerDayCents, &plan.MaxRenewals); err != nil {
			return nil, err
		}
		plan.LoanDuration = time.Duration(days) * 24 * time.Hour
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *planRepository) Update(ctx context.Context, plan *domain.MembershipPlan) error {
	query := `UPDATE membership_plans
	          SET name = $1, max_books = $2, loan_duration_days = $3, late_fee_per_day_cents = $4, max_renewals = $5
	          WHERE id = $6`
	logger.StoreCall("UPDATE", "membership_plans", "planID", plan.ID)
	res, err := r.q.ExecContext(ctx, query, plan.Name, plan.MaxBooks, plan.LoanDays(), plan.LateFeePerDayCents, plan.MaxRenewals, plan.ID)
	if err != nil {
		logger.StoreResult("UPDATE", 0, err, "planID", plan.ID)
		return err
	}
	n, err := res.RowsAffected()
	logger.StoreResult("UPDATE", n, err, "planID", plan.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("membership plan", plan.ID)
	}
	return nil
}

type categoryRuleRepository struct {
	q Querier
}

func NewCategoryRuleRepository(q Querier) repository.CategoryRuleRepository {
	return &categoryRuleRepository{q: q}
}

func (r *categoryRuleRepository) Get(ctx context.Context, category domain.Category) (*domain.CategoryRules, error) {
	rules := &domain.CategoryRules{}
	query := `SELECT category, publish_on_approve, approve_notes_required, max_body_length FROM category_rules WHERE category = $1`
	err := r.q.QueryRowContext(ctx, query, category).Scan(&rules.Category, &rules.PublishOnApprove, &rules.ApproveNotesRequired, &rules.MaxBodyLength)
	if isNoRows(err) {
		return nil, domain.NotFound("category rules", category)
	}
	if err != nil {
		return nil, err
	}
	return rules, nil
}
