package depositaccount

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) account(args mock.Arguments) (*models.DepositAccount, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DepositAccount), args.Error(1)
}

func (m *MockService) Create(ctx context.Context, in models.DummyDepositAccount) (*models.DepositAccount, error) {
	return m.account(m.Called(ctx, in))
}

func (m *MockService) List(ctx context.Context) ([]*models.DepositAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DepositAccount), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, id string, in models.DummyDepositAccount) (*models.DepositAccount, error) {
	return m.account(m.Called(ctx, id, in))
}

func (m *MockService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func bkash() *models.DepositAccount {
	return &models.DepositAccount{ID: "a1", Account: "bKash", AccountNumber: "01700000000"}
}

func TestCreateHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "реквизиты добавлены",
			body: `{"account":"bKash","account_number":"01700000000"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, models.DummyDepositAccount{Account: "bKash", AccountNumber: "01700000000"}).
					Return(bkash(), nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"account_number":"01700000000"`,
		},
		{
			name:           "нет номера счёта",
			body:           `{"account":"bKash"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field AccountNumber is a required field`,
		},
		{
			name: "реквизиты уже есть",
			body: `{"account":"bKash","account_number":"01700000000"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil, models.ErrAlreadyExists).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"already exists"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(sl.Discard(), svc)

			w := httptest.NewRecorder()
			h.Create(w, httptest.NewRequest(http.MethodPost, "/admin/deposit-accounts", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestListHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("List", mock.Anything).Return([]*models.DepositAccount{bkash()}, nil).Once()
	h := New(sl.Discard(), svc)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/deposit-accounts", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"list_count":1`)
	assert.Contains(t, w.Body.String(), `"account":"bKash"`)
}

func TestUpdateAndDeleteHandlers(t *testing.T) {
	svc := new(MockService)
	svc.On("Update", mock.Anything, "a1", models.DummyDepositAccount{Account: "Nagad", AccountNumber: "018"}).
		Return(&models.DepositAccount{ID: "a1", Account: "Nagad", AccountNumber: "018"}, nil).Once()
	svc.On("Update", mock.Anything, "missing", mock.Anything).Return(nil, models.ErrNotFound).Once()
	svc.On("Delete", mock.Anything, "a1").Return(nil).Once()
	svc.On("Delete", mock.Anything, "missing").Return(models.ErrNotFound).Once()
	h := New(sl.Discard(), svc)

	w := httptest.NewRecorder()
	h.Update(w, withID(httptest.NewRequest(http.MethodPut, "/admin/deposit-accounts/a1",
		strings.NewReader(`{"account":"Nagad","account_number":"018"}`)), "a1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"account":"Nagad"`)

	w = httptest.NewRecorder()
	h.Update(w, withID(httptest.NewRequest(http.MethodPut, "/admin/deposit-accounts/missing",
		strings.NewReader(`{"account":"Nagad","account_number":"018"}`)), "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.Delete(w, withID(httptest.NewRequest(http.MethodDelete, "/admin/deposit-accounts/a1", nil), "a1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted_id":"a1"`)

	w = httptest.NewRecorder()
	h.Delete(w, withID(httptest.NewRequest(http.MethodDelete, "/admin/deposit-accounts/missing", nil), "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.AssertExpectations(t)
}
