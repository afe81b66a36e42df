package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bioopay/backend/internal/models"
	services "github.com/bioopay/backend/internal/services/plan"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) CreatePlan(ctx context.Context, p *models.Plan) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) GetPlanByID(ctx context.Context, id string) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *RepoMock) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *RepoMock) UpdatePlan(ctx context.Context, p *models.Plan) error {
	return m.Called(ctx, p).Error(0)
}

func (m *RepoMock) DeletePlan(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestPlanService_CreateRoundsMoney(t *testing.T) {
	repo := new(RepoMock)
	repo.On("CreatePlan", mock.Anything, mock.MatchedBy(func(p *models.Plan) bool {
		return p.Price.Equal(decimal.RequireFromString("99.99")) &&
			p.CommissionRate.Equal(decimal.RequireFromString("12.35"))
	})).Return("p1", nil).Once()

	p, err := services.NewPlanService(repo).Create(context.Background(), models.DummyPlan{
		Name: "Gold", Price: 99.99, CommissionRate: 12.345,
	})
	require.NoError(t, err)
	assert.Equal(t, "Gold", p.Name)
	repo.AssertExpectations(t)
}

func TestPlanService_DeleteInUse(t *testing.T) {
	repo := new(RepoMock)
	repo.On("DeletePlan", mock.Anything, "p1").Return(models.ErrInvalidState).Once()

	err := services.NewPlanService(repo).Delete(context.Background(), "p1")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	repo.AssertExpectations(t)
}

func TestPlanService_ListEmpty(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ListPlans", mock.Anything).Return(nil, nil).Once()

	plans, err := services.NewPlanService(repo).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, plans)
	assert.Empty(t, plans)
}
