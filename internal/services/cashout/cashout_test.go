package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
	services "github.com/bioopay/backend/internal/services/cashout"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

func (m *RepoMock) FindActiveDepositByUser(ctx context.Context, userID string) (*models.Deposit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *RepoMock) DebitEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	return m.Called(ctx, userID, amount.String()).Error(0)
}

func (m *RepoMock) RefundEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	return m.Called(ctx, userID, amount.String()).Error(0)
}

func (m *RepoMock) CreateCashOut(ctx context.Context, c *models.CashOut) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) LockCashOutByID(ctx context.Context, id string) (*models.CashOut, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CashOut), args.Error(1)
}

func (m *RepoMock) UpdateCashOutStatus(ctx context.Context, id, status, remarks string) error {
	return m.Called(ctx, id, status, remarks).Error(0)
}

func (m *RepoMock) ListCashOutsByUser(ctx context.Context, userID string) ([]*models.CashOut, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CashOut), args.Error(1)
}

func (m *RepoMock) ListCashOuts(ctx context.Context, limit, offset int) ([]*models.CashOut, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CashOut), args.Error(1)
}

func TestCashOutService_Create(t *testing.T) {
	input := models.DummyCashOut{Amount: 12.5, AccountType: models.AccountEasyPaisa, AccountNumber: "03001234567"}

	tests := []struct {
		name       string
		input      models.DummyCashOut
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name:  "success",
			input: input,
			setupMocks: func(r *RepoMock) {
				r.On("WithinTx", mock.Anything).Once()
				r.On("FindActiveDepositByUser", mock.Anything, "u1").Return(&models.Deposit{ID: "d1"}, nil).Once()
				r.On("DebitEarnings", mock.Anything, "u1", "12.5").Return(nil).Once()
				r.On("CreateCashOut", mock.Anything, mock.MatchedBy(func(c *models.CashOut) bool {
					return c.UserID == "u1" && c.AccountType == models.AccountEasyPaisa
				})).Return("c1", nil).Once()
			},
		},
		{
			name:  "no active plan",
			input: input,
			setupMocks: func(r *RepoMock) {
				r.On("WithinTx", mock.Anything).Once()
				r.On("FindActiveDepositByUser", mock.Anything, "u1").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrNoActivePlan,
		},
		{
			name:  "insufficient funds",
			input: input,
			setupMocks: func(r *RepoMock) {
				r.On("WithinTx", mock.Anything).Once()
				r.On("FindActiveDepositByUser", mock.Anything, "u1").Return(&models.Deposit{ID: "d1"}, nil).Once()
				r.On("DebitEarnings", mock.Anything, "u1", "12.5").Return(models.ErrInsufficientFunds).Once()
			},
			wantErr: models.ErrInsufficientFunds,
		},
		{
			name:       "amount below minimum",
			input:      models.DummyCashOut{Amount: 0.5, AccountType: models.AccountJazzCash, AccountNumber: "03001234567"},
			setupMocks: func(r *RepoMock) {},
			wantErr:    models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			svc := services.NewCashOutService(repo, sl.Discard())

			c, err := svc.Create(context.Background(), "u1", tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.True(t, decimal.RequireFromString("12.50").Equal(c.Amount))
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestCashOutService_Review(t *testing.T) {
	pending := func() *models.CashOut {
		return &models.CashOut{ID: "c1", UserID: "u1", Amount: decimal.NewFromInt(5), Status: models.CashOutPending}
	}

	tests := []struct {
		name       string
		review     models.DummyReview
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name:   "approve",
			review: models.DummyReview{Status: models.CashOutApproved, Remarks: "sent"},
			setupMocks: func(r *RepoMock) {
				r.On("WithinTx", mock.Anything).Once()
				r.On("LockCashOutByID", mock.Anything, "c1").Return(pending(), nil).Once()
				r.On("UpdateCashOutStatus", mock.Anything, "c1", models.CashOutApproved, "sent").Return(nil).Once()
			},
		},
		{
			name:   "reject refunds the amount",
			review: models.DummyReview{Status: models.CashOutRejected, Remarks: "wrong number"},
			setupMocks: func(r *RepoMock) {
				r.On("WithinTx", mock.Anything).Once()
				r.On("LockCashOutByID", mock.Anything, "c1").Return(pending(), nil).Once()
				r.On("UpdateCashOutStatus", mock.Anything, "c1", models.CashOutRejected, "wrong number").Return(nil).Once()
				r.On("RefundEarnings", mock.Anything, "u1", "5").Return(nil).Once()
			},
		},
		{
			name:   "already reviewed",
			review: models.DummyReview{Status: models.CashOutRejected},
			setupMocks: func(r *RepoMock) {
				c := pending()
				c.Status = models.CashOutApproved
				r.On("WithinTx", mock.Anything).Once()
				r.On("LockCashOutByID", mock.Anything, "c1").Return(c, nil).Once()
			},
			wantErr: models.ErrInvalidState,
		},
		{
			name:       "unknown status",
			review:     models.DummyReview{Status: models.CashOutPending},
			setupMocks: func(r *RepoMock) {},
			wantErr:    models.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			svc := services.NewCashOutService(repo, sl.Discard())

			c, err := svc.Review(context.Background(), "c1", tt.review)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.review.Status, c.Status)
			}
			repo.AssertExpectations(t)
		})
	}
}
