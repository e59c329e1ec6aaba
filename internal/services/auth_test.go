package services

import (
	"context"
	"testing"
	"time"

	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Login(t *testing.T) {
	db := newTestDB(t)
	migrate(t, db)
	ctx := context.Background()

	users := NewUserService(db)
	user, err := users.CreateLocalUser(ctx, "admin@acme.test", "s3cure-passw0rd", "firstadmin")
	require.NoError(t, err)
	_, err = users.SetRole(ctx, user.ID, models.RoleAdmin)
	require.NoError(t, err)

	auth := NewAuthService(db, &config.JWTConfig{ExpireHour: 2})

	_, err = auth.Login(ctx, &LoginRequest{Username: "nobody", Password: "s3cure-passw0rd"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, &LoginRequest{Username: "firstadmin", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := auth.Login(ctx, &LoginRequest{Username: "firstadmin", Password: "s3cure-passw0rd"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)

	claims, err := utils.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.WithinDuration(t, resp.ExpireAt, claims.ExpiresAt.Time, 2*time.Second)

	stored, err := auth.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestAuthService_LoginDisabledUser(t *testing.T) {
	db := newTestDB(t)
	migrate(t, db)
	ctx := context.Background()

	user, err := NewUserService(db).CreateLocalUser(ctx, "ops@acme.test", "s3cure-passw0rd", "operator")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	_, err = NewAuthService(db, &config.JWTConfig{}).Login(ctx, &LoginRequest{Username: "operator", Password: "s3cure-passw0rd"})
	assert.ErrorIs(t, err, ErrUserDisabled)
}
