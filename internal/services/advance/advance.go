// Package services содержит заявки на аванс для лидеров команд.
package services

import (
	"context"
	"fmt"

	"github.com/bioopay/backend/internal/models"
)

// Repository описывает хранилище заявок на аванс.
type Repository interface {
	CreateAdvance(ctx context.Context, a *models.Advance) (string, error)
	GetAdvanceByID(ctx context.Context, id string) (*models.Advance, error)
	ListAdvancesByUser(ctx context.Context, userID string) ([]*models.Advance, error)
	ListAdvances(ctx context.Context, limit, offset int) ([]*models.Advance, error)
	UpdateAdvanceStatus(ctx context.Context, id, status, remarks string) error
}

// AdvanceService принимает и рассматривает заявки на аванс.
type AdvanceService struct {
	repo Repository
}

// NewAdvanceService создает новый экземпляр AdvanceService.
func NewAdvanceService(repo Repository) *AdvanceService {
	return &AdvanceService{repo: repo}
}

// Apply создает заявку. Категория и сумма определяются размером команды.
func (s *AdvanceService) Apply(ctx context.Context, userID string, in models.DummyAdvance) (*models.Advance, error) {
	const op = "services.advance.Apply"

	if in.TeamSize <= 0 {
		return nil, fmt.Errorf("%s: team size must be positive: %w", op, models.ErrInvalidInput)
	}
	category, amount := models.AdvanceTier(in.TeamSize)
	a := &models.Advance{
		UserID:       userID,
		TeamSize:     in.TeamSize,
		TeamCategory: category,
		Amount:       amount,
		UserComment:  in.UserComment,
	}
	if _, err := s.repo.CreateAdvance(ctx, a); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// Review меняет статус заявки и замечания администратора.
func (s *AdvanceService) Review(ctx context.Context, id string, in models.DummyReview) (*models.Advance, error) {
	const op = "services.advance.Review"

	if !models.IsValidAdvanceStatus(in.Status) {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, in.Status, models.ErrInvalidState)
	}
	a, err := s.repo.GetAdvanceByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdateAdvanceStatus(ctx, id, in.Status, in.Remarks); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Status = in.Status
	a.Remarks = in.Remarks
	return a, nil
}

// ListMine возвращает заявки пользователя.
func (s *AdvanceService) ListMine(ctx context.Context, userID string) ([]*models.Advance, error) {
	const op = "services.advance.ListMine"
	res, err := s.repo.ListAdvancesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []*models.Advance{}
	}
	return res, nil
}

// ListAll возвращает страницу всех заявок.
func (s *AdvanceService) ListAll(ctx context.Context, limit, offset int) ([]*models.Advance, error) {
	const op = "services.advance.ListAll"
	res, err := s.repo.ListAdvances(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []*models.Advance{}
	}
	return res, nil
}
