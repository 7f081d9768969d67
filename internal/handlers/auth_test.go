package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bridge-traffic-sim/internal/auth"
	"github.com/ukydev/bridge-traffic-sim/internal/db"
	"github.com/ukydev/bridge-traffic-sim/internal/middleware"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// MockOperatorCollection is a mock implementation of OperatorCollection
type MockOperatorCollection struct {
	mock.Mock
}

func (m *MockOperatorCollection) FindOperator(ctx context.Context, username string) (*models.Operator, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

func (m *MockOperatorCollection) UpsertOperator(ctx context.Context, op models.Operator) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperatorCollection) UpdateLastLogin(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func newOperator(t *testing.T, s *auth.Service, active bool) *models.Operator {
	t.Helper()
	hash, err := s.HashPassword("password123")
	require.NoError(t, err)
	return &models.Operator{Username: "brugwachter", PasswordHash: hash, Role: models.RoleOperator, IsActive: active}
}

func loginRequest(t *testing.T, username, password string) *http.Request {
	t.Helper()
	body, err := json.Marshal(models.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
}

func TestAuthHandler_Login(t *testing.T) {
	authService := auth.NewService("", 0)

	t.Run("successful login", func(t *testing.T) {
		ops := new(MockOperatorCollection)
		handler := NewAuthHandler(authService, ops)
		op := newOperator(t, authService, true)

		ops.On("FindOperator", mock.Anything, "brugwachter").Return(op, nil)
		ops.On("UpdateLastLogin", mock.Anything, "brugwachter").Return(nil)

		w := httptest.NewRecorder()
		handler.Login(w, loginRequest(t, "brugwachter", "password123"))

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.False(t, response.ExpiresAt.IsZero())
		assert.Equal(t, "brugwachter", response.Operator.Username)
		assert.NotContains(t, w.Body.String(), op.PasswordHash)

		claims, err := authService.ValidateToken(response.Token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOperator, claims.Role)
		ops.AssertExpectations(t)
	})

	t.Run("last login failure does not fail login", func(t *testing.T) {
		ops := new(MockOperatorCollection)
		handler := NewAuthHandler(authService, ops)
		ops.On("FindOperator", mock.Anything, "brugwachter").Return(newOperator(t, authService, true), nil)
		ops.On("UpdateLastLogin", mock.Anything, "brugwachter").Return(errors.New("db down"))

		w := httptest.NewRecorder()
		handler.Login(w, loginRequest(t, "brugwachter", "password123"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		ops := new(MockOperatorCollection)
		handler := NewAuthHandler(authService, ops)
		ops.On("FindOperator", mock.Anything, "brugwachter").Return(newOperator(t, authService, true), nil)

		w := httptest.NewRecorder()
		handler.Login(w, loginRequest(t, "brugwachter", "wrong"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		ops.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
	})

	t.Run("unknown operator", func(t *testing.T) {
		ops := new(MockOperatorCollection)
		handler := NewAuthHandler(authService, ops)
		ops.On("FindOperator", mock.Anything, "ghost").Return(nil, db.ErrOperatorNotFound)

		w := httptest.NewRecorder()
		handler.Login(w, loginRequest(t, "ghost", "password123"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("inactive operator", func(t *testing.T) {
		ops := new(MockOperatorCollection)
		handler := NewAuthHandler(authService, ops)
		ops.On("FindOperator", mock.Anything, "brugwachter").Return(newOperator(t, authService, false), nil)

		w := httptest.NewRecorder()
		handler.Login(w, loginRequest(t, "brugwachter", "password123"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "deactivated")
	})

	t.Run("bad requests", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockOperatorCollection))

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		handler.Login(w, loginRequest(t, "brugwachter", ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("GET", "/api/auth/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	handler := NewAuthHandler(auth.NewService("", 0), new(MockOperatorCollection))

	w := httptest.NewRecorder()
	handler.Me(w, httptest.NewRequest("GET", "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	claims := &models.Claims{Username: "brugwachter", Role: models.RoleViewer}
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req = req.WithContext(middleware.WithOperator(req.Context(), claims))
	w = httptest.NewRecorder()
	handler.Me(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var got models.Claims
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, *claims, got)
}
