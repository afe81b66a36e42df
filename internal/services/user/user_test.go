package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bioopay/backend/internal/lib/password"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
	services "github.com/bioopay/backend/internal/services/user"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *RepoMock) CountByReferredBy(ctx context.Context, code string) (int, error) {
	args := m.Called(ctx, code)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) UpdateAccountStatus(ctx context.Context, userID, status string) error {
	return m.Called(ctx, userID, status).Error(0)
}

func (m *RepoMock) ListCommissionsByReferrer(ctx context.Context, referrerID string) ([]*models.CommissionEntry, error) {
	args := m.Called(ctx, referrerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CommissionEntry), args.Error(1)
}

func (m *RepoMock) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *RepoMock) LockUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) UpdateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *RepoMock) ReparentReferrals(ctx context.Context, from, to string) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestUserService_Profile(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantCount  int
		wantErr    error
	}{
		{
			name: "with referrals",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", ReferralCode: "AB12"}, nil).Once()
				r.On("CountByReferredBy", mock.Anything, "AB12").Return(3, nil).Once()
			},
			wantCount: 3,
		},
		{
			name: "not found",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByID", mock.Anything, "u1").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)

			p, err := services.NewUserService(repo, sl.Discard()).Profile(context.Background(), "u1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantCount, p.TotalReferred)
				assert.Equal(t, "u1", p.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_List(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ListUsers", mock.Anything, 10, 0).Return([]*models.User{
		{ID: "u1", ReferralCode: "A"}, {ID: "u2", ReferralCode: "B"},
	}, nil).Once()
	repo.On("CountByReferredBy", mock.Anything, "A").Return(1, nil).Once()
	repo.On("CountByReferredBy", mock.Anything, "B").Return(0, errors.New("db error")).Once()

	_, err := services.NewUserService(repo, sl.Discard()).List(context.Background(), 10, 0)
	assert.Error(t, err)
	repo.AssertExpectations(t)
}

func TestUserService_SetAccountStatus(t *testing.T) {
	repo := new(RepoMock)
	repo.On("UpdateAccountStatus", mock.Anything, "u1", models.AccountSuspended).Return(nil).Once()
	svc := services.NewUserService(repo, sl.Discard())

	require.NoError(t, svc.SetAccountStatus(context.Background(), "u1", models.AccountSuspended))
	assert.ErrorIs(t, svc.SetAccountStatus(context.Background(), "u1", "deleted"), models.ErrInvalidState)
	repo.AssertExpectations(t)
}

func TestUserService_AccountStatus(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", AccountStatus: models.AccountSuspended}, nil)
	repo.On("GetUserByID", mock.Anything, "missing").Return(nil, models.ErrNotFound)
	s := services.NewUserService(repo, sl.Discard())

	status, err := s.AccountStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AccountSuspended, status)

	_, err = s.AccountStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Run("name changed", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("LockUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", UserName: "old", ReferralCode: "AB12"}, nil).Once()
		repo.On("UpdateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool { return u.UserName == "newname" })).Return(nil).Once()
		repo.On("CountByReferredBy", mock.Anything, "AB12").Return(1, nil).Once()

		svc := services.NewUserService(repo, sl.Discard())
		got, err := svc.UpdateProfile(context.Background(), "u1", models.DummyProfileUpdate{UserName: " newname "})
		require.NoError(t, err)
		assert.Equal(t, "newname", got.UserName)
		assert.Equal(t, 1, got.TotalReferred)
		repo.AssertExpectations(t)
	})

	t.Run("name taken", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("LockUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil).Once()
		repo.On("UpdateUser", mock.Anything, mock.Anything).Return(models.ErrAlreadyExists).Once()

		svc := services.NewUserService(repo, sl.Discard())
		_, err := svc.UpdateProfile(context.Background(), "u1", models.DummyProfileUpdate{UserName: "taken"})
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	})
}

func TestUserService_ChangePassword(t *testing.T) {
	hash, err := password.GetHash("oldpass")
	require.NoError(t, err)

	tests := []struct {
		name      string
		current   string
		wantErr   error
		wantWrite bool
	}{
		{name: "correct current password", current: "oldpass", wantWrite: true},
		{name: "wrong current password", current: "nope", wantErr: models.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("LockUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", PasswordHash: hash}, nil).Once()
			var saved *models.User
			repo.On("UpdateUser", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				saved = args.Get(1).(*models.User)
			}).Return(nil).Maybe()

			svc := services.NewUserService(repo, sl.Discard())
			err := svc.ChangePassword(context.Background(), "u1", models.DummyChangePassword{
				CurrentPassword: tt.current, NewPassword: "newpass1",
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, saved)
			assert.NoError(t, password.CompareHash(saved.PasswordHash, "newpass1"))
		})
	}
}

func TestUserService_UpdateUser(t *testing.T) {
	repo := new(RepoMock)
	repo.On("LockUserByID", mock.Anything, "u1").Return(&models.User{
		ID: "u1", UserName: "alice", Email: "a@example.com", Role: models.RoleUser,
		AccountStatus: models.AccountActive, PasswordHash: "keep", ReferralCode: "AB12",
	}, nil).Once()
	var saved *models.User
	repo.On("UpdateUser", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.User)
	}).Return(nil).Once()
	repo.On("CountByReferredBy", mock.Anything, "AB12").Return(0, nil).Once()

	role := models.RoleAdmin
	status := models.AccountBanned
	svc := services.NewUserService(repo, sl.Discard())
	got, err := svc.UpdateUser(context.Background(), "u1", models.DummyUserUpdate{Role: &role, AccountStatus: &status})
	require.NoError(t, err)

	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, models.AccountBanned, saved.AccountStatus)
	assert.Equal(t, "alice", saved.UserName, "незаполненные поля не меняются")
	assert.Equal(t, "a@example.com", saved.Email)
	assert.Equal(t, "keep", saved.PasswordHash)
	repo.AssertExpectations(t)
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Run("referrals move to the deleted user's referrer", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("LockUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", ReferralCode: "MID001", ReferredBy: "TOP001"}, nil).Once()
		repo.On("ReparentReferrals", mock.Anything, "MID001", "TOP001").Return(2, nil).Once()
		repo.On("DeleteUser", mock.Anything, "u1").Return(nil).Once()

		svc := services.NewUserService(repo, sl.Discard())
		got, err := svc.DeleteUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
		repo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("LockUserByID", mock.Anything, "u1").Return(nil, models.ErrNotFound).Once()

		svc := services.NewUserService(repo, sl.Discard())
		_, err := svc.DeleteUser(context.Background(), "u1")
		assert.ErrorIs(t, err, models.ErrNotFound)
		repo.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
	})

	t.Run("reparent failure keeps user", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("LockUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", ReferralCode: "MID001"}, nil).Once()
		repo.On("ReparentReferrals", mock.Anything, "MID001", "").Return(0, errors.New("db down")).Once()

		svc := services.NewUserService(repo, sl.Discard())
		_, err := svc.DeleteUser(context.Background(), "u1")
		require.Error(t, err)
		repo.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
	})
}
