package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"judge_zone/internal/app/access"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, log *zap.Logger) *UserService {
	return &UserService{userRepo: userRepo, log: log}
}

func canManage(actor *access.Actor, u *model.User) bool {
	return actor.IsAdmin() || (actor != nil && actor.UserID == u.ID)
}

func (s *UserService) List(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (s *UserService) AdminList(ctx context.Context) ([]model.PrivateUser, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PrivateUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Private())
	}
	return out, nil
}

// Get returns the private view to the account owner and admins, the public
// view to everyone else.
func (s *UserService) Get(ctx context.Context, actor *access.Actor, username string) (any, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if canManage(actor, user) {
		return user.Private(), nil
	}
	return user.Public(), nil
}

func (s *UserService) Update(ctx context.Context, actor *access.Actor, username string, req model.UpdateUserRequest) (*model.PrivateUser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, user) {
		return nil, common.ErrForbidden
	}
	if req.Permissions != nil && !actor.IsAdmin() {
		return nil, fmt.Errorf("only admins may change permissions: %w", common.ErrForbidden)
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Email != nil {
		if *req.Email == "" {
			user.Email = nil
		} else {
			user.Email = req.Email
		}
	}
	if req.Permissions != nil {
		user.Permissions = *req.Permissions
		s.log.Info("permissions changed", zap.String("username", user.Username), zap.Strings("permissions", user.Permissions))
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	view := user.Private()
	return &view, nil
}
