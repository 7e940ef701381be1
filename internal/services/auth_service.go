// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/config"
	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/utils"
)

type AuthService struct {
	db  *gorm.DB
	cfg config.JWTConfig
	log *logrus.Logger
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg config.JWTConfig, log *logrus.Logger) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
		log: log,
	}
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	db := s.db.WithContext(ctx)

	// Find user by email
	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Customers without a password cannot sign in to the back-office.
	if user.PasswordHash == "" {
		return nil, ErrInvalidLogin
	}
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidLogin
	}

	// Update last login time
	now := time.Now()
	user.LastLoginAt = &now
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to record login time")
	}

	accessToken, err := utils.GenerateJWT(user.ID, user.Email, user.IsAdmin, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
	}).Info("User logged in")

	return &AuthResponse{
		User:        &user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}
