package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService() *UserService {
	return &UserService{}
}

func (u *UserService) Me(ctx context.Context, userID string) (*model.User, *Error) {
	user, err := u.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to get user", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}
	return toModelUser(user), nil
}

func (u *UserService) Update(ctx context.Context, userID string, upd *model.UserUpdate) (*model.User, *Error) {
	user, err := u.users.Patch(ctx, &repository.UserPatch{
		ID:        userID,
		FullName:  upd.FullName,
		AvatarURL: upd.AvatarURL,
		Locale:    upd.Locale,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to update user", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update user")
	}
	return toModelUser(user), nil
}

func toModelUser(u *repository.User) *model.User {
	return &model.User{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		TeamID:    u.TeamID,
		Locale:    u.Locale,
	}
}

func (u *UserService) WithUserRepo(r repository.UserRepository) *UserService {
	u.users = r
	return u
}
