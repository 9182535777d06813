package service

import (
	"context"
	"time"

	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

const notificationsLimit = 50

type NotificationService struct {
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationService() *NotificationService {
	return &NotificationService{now: time.Now}
}

func (s *NotificationService) List(ctx context.Context, teamID, userID string) ([]*model.Notification, *Error) {
	rows, err := s.notifications.List(ctx, teamID, userID, notificationsLimit)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list notifications")
	}

	res := make([]*model.Notification, 0, len(rows))
	for _, n := range rows {
		res = append(res, &model.Notification{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return res, nil
}

// MarkRead marks the given unread notifications of the user as read and returns how many changed.
func (s *NotificationService) MarkRead(ctx context.Context, teamID, userID string, ids []string) (int64, *Error) {
	if len(ids) == 0 {
		return 0, NewError(ErrorCodeInvalidBody, "no ids given")
	}

	n, err := s.notifications.MarkRead(ctx, teamID, userID, ids, s.now())
	if err != nil {
		logger.FromContext(ctx).Error("failed to mark notifications read", zap.String("user_id", userID), zap.Error(err))
		return 0, NewError(ErrorCodeUnspecified, "failed to mark notifications read")
	}
	return n, nil
}

func (s *NotificationService) WithNotificationRepo(r repository.NotificationRepository) *NotificationService {
	s.notifications = r
	return s
}

func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}
