package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"judge_zone/internal/common"
	"judge_zone/internal/common/security"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
)

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *security.TokenIssuer
	log      *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens *security.TokenIssuer, log *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, log: log}
}

func principalOf(u *model.User) security.Principal {
	return security.Principal{UserID: u.ID, Username: u.Username, Permissions: u.Permissions}
}

func (s *AuthService) issue(u *model.User, withRefresh bool) (*model.AuthResponse, error) {
	p := principalOf(u)
	access, err := s.tokens.GenerateAccessToken(p)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	resp := &model.AuthResponse{User: u.Private(), AccessToken: access}
	if withRefresh {
		if resp.RefreshToken, err = s.tokens.GenerateRefreshToken(p); err != nil {
			return nil, fmt.Errorf("failed to generate refresh token: %w", err)
		}
	}
	return resp, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	user := &model.User{
		Username:     req.Username,
		DisplayName:  displayName,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Permissions:  []string{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo returns common.ErrConflict on a taken username
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(user, true)
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, common.ErrUnauthorized
	}
	return s.issue(user, true)
}

// Refresh trades a refresh token for a new access token. Permissions are
// re-read so a revoked grant does not survive the refresh.
func (s *AuthService) Refresh(ctx context.Context, req model.RefreshRequest) (*model.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", common.ErrUnauthorized)
	}
	user, err := s.userRepo.FindByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return s.issue(user, false)
}
