package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/storefront-backend/internal/config"
	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/testutil"
	"github.com/javajoker/storefront-backend/internal/utils"
)

func TestAuthServiceLogin(t *testing.T) {
	db := testutil.NewDB(t)
	admin := models.User{Email: "admin@example.com", IsAdmin: true}
	require.NoError(t, admin.SetPassword("s3cret-pass"))
	require.NoError(t, db.Create(&admin).Error)
	customer := models.User{Email: "buyer@example.com"}
	require.NoError(t, db.Create(&customer).Error)

	svc := NewAuthService(db, config.JWTConfig{AccessTokenTTL: time.Hour}, testutil.NewLogger())
	ctx := context.Background()

	resp, err := svc.Login(ctx, &LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.NotNil(t, resp.User.LastLoginAt)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.ID.String(), claims.UserID)
	assert.True(t, claims.IsAdmin)

	for _, req := range []*LoginRequest{
		{Email: "admin@example.com", Password: "wrong"},
		{Email: "nobody@example.com", Password: "s3cret-pass"},
		{Email: "buyer@example.com", Password: ""},
	} {
		_, err := svc.Login(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidLogin, req.Email)
	}
}
