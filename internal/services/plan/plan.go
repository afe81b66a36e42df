// Package services содержит управление тарифными планами.
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bioopay/backend/internal/models"
)

// Repository описывает хранилище планов.
type Repository interface {
	CreatePlan(ctx context.Context, p *models.Plan) (string, error)
	GetPlanByID(ctx context.Context, id string) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	UpdatePlan(ctx context.Context, p *models.Plan) error
	DeletePlan(ctx context.Context, id string) error
}

// PlanService реализует CRUD тарифных планов.
type PlanService struct {
	repo Repository
}

// NewPlanService создает новый экземпляр PlanService.
func NewPlanService(repo Repository) *PlanService {
	return &PlanService{repo: repo}
}

func toPlan(id string, in models.DummyPlan) *models.Plan {
	return &models.Plan{
		ID:             id,
		Name:           in.Name,
		Price:          decimal.NewFromFloat(in.Price).Round(2),
		CommissionRate: decimal.NewFromFloat(in.CommissionRate).Round(2),
	}
}

// Create создает план.
func (s *PlanService) Create(ctx context.Context, in models.DummyPlan) (*models.Plan, error) {
	const op = "services.plan.Create"
	p := toPlan("", in)
	if _, err := s.repo.CreatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Get возвращает план по ID.
func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	const op = "services.plan.Get"
	p, err := s.repo.GetPlanByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// List возвращает все планы.
func (s *PlanService) List(ctx context.Context) ([]*models.Plan, error) {
	const op = "services.plan.List"
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if plans == nil {
		plans = []*models.Plan{}
	}
	return plans, nil
}

// Update заменяет поля плана. Цена уже созданных депозитов не меняется.
func (s *PlanService) Update(ctx context.Context, id string, in models.DummyPlan) (*models.Plan, error) {
	const op = "services.plan.Update"
	p := toPlan(id, in)
	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Delete удаляет план. План, на который ссылаются депозиты, удалить нельзя.
func (s *PlanService) Delete(ctx context.Context, id string) error {
	const op = "services.plan.Delete"
	if err := s.repo.DeletePlan(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
