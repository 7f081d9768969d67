package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

func operator(role models.Role) *models.Operator {
	return &models.Operator{Username: "testoperator", Role: role, IsActive: true}
}

func TestNewService(t *testing.T) {
	service := NewService("", 0)
	assert.NotEmpty(t, service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	service = NewService("s3cret", time.Hour)
	assert.Equal(t, []byte("s3cret"), service.jwtSecret)
	assert.Equal(t, time.Hour, service.tokenExp)
}

func TestService_CheckPassword(t *testing.T) {
	service := NewService("", 0)

	hash, err := service.HashPassword("testpassword123")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword123", hash)

	assert.True(t, service.CheckPassword("testpassword123", hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_Authenticate(t *testing.T) {
	service := NewService("", 0)
	hash, err := service.HashPassword("testpassword123")
	require.NoError(t, err)

	op := operator(models.RoleOperator)
	op.PasswordHash = hash
	assert.NoError(t, service.Authenticate(op, "testpassword123"))
	assert.ErrorIs(t, service.Authenticate(op, "nope"), ErrInvalidCredentials)
	assert.ErrorIs(t, service.Authenticate(nil, "testpassword123"), ErrInvalidCredentials)

	op.IsActive = false
	assert.ErrorIs(t, service.Authenticate(op, "testpassword123"), ErrOperatorInactive)
}

func TestService_ValidateToken(t *testing.T) {
	service := NewService("", 0)
	op := operator(models.RoleAdmin)

	token, exp, err := service.GenerateToken(op)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, op.Username, claims.Username)
	assert.Equal(t, op.Role, claims.Role)
	assert.Equal(t, exp.Unix(), claims.Exp)

	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)

	_, err = NewService("other-secret", 0).ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_TokenExpiration(t *testing.T) {
	service := NewService("", time.Minute)
	start := time.Now()
	service.now = func() time.Time { return start }

	token, _, err := service.GenerateToken(operator(models.RoleViewer))
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute).Unix(), claims.Exp)

	service.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestService_RejectsForeignClaims(t *testing.T) {
	service := NewService("", 0)
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.jwtSecret)
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	_, err := service.ValidateToken(sign(jwt.MapClaims{"sub": "op", "role": "operator", "exp": exp}))
	assert.Equal(t, ErrInvalidToken, err, "missing issuer")

	_, err = service.ValidateToken(sign(jwt.MapClaims{"sub": "op", "role": "superuser", "iss": issuer, "exp": exp}))
	assert.Equal(t, ErrInvalidToken, err, "unknown role")

	_, err = service.ValidateToken(sign(jwt.MapClaims{"role": "operator", "iss": issuer, "exp": exp}))
	assert.Equal(t, ErrInvalidToken, err, "missing subject")
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := NewService("", 0)

	extracted, err := service.ExtractTokenFromHeader("Bearer valid-token")
	assert.NoError(t, err)
	assert.Equal(t, "valid-token", extracted)

	for _, header := range []string{"", "InvalidFormat", "Bearer ", "Basic abc"} {
		_, err = service.ExtractTokenFromHeader(header)
		assert.Equal(t, ErrInvalidToken, err, header)
	}
}

func TestService_ValidatePassword(t *testing.T) {
	service := NewService("", 0)
	assert.NoError(t, service.ValidatePassword("validpassword123"))

	err := service.ValidatePassword("short")
	assert.ErrorContains(t, err, "at least 8 characters")
}
