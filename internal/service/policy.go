package service

import (
	"context"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

// policyService reads plans and category rules straight from the store on
// every call. Nothing is cached between calls.
type policyService struct {
	store repository.Store
}

func NewPolicyService(store repository.Store) PolicyService {
	return &policyService{store: store}
}

func (s *policyService) GetPlan(ctx context.Context, planID int32) (*domain.MembershipPlan, error) {
	return s.store.Plans().GetByID(ctx, planID)
}

func (s *policyService) ListPlans(ctx context.Context) ([]domain.MembershipPlan, error) {
	return s.store.Plans().List(ctx)
}

func (s *policyService) GetCategoryRules(ctx context.Context, category domain.Category) (*domain.CategoryRules, error) {
	return s.store.CategoryRules().Get(ctx, category)
}
