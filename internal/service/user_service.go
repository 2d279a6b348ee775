package service

import (
	"context"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// UserService administers accounts. It is only reachable from shopctl.
type UserService struct {
	repo       store.Repository
	sessions   SessionStore
	sessionTTL time.Duration
	events     EventPublisher
	logger     *zap.Logger
}

func NewUserService(repo store.Repository, sessions SessionStore, sessionTTL time.Duration, events EventPublisher) *UserService {
	return &UserService{
		repo:       repo,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		events:     events,
		logger:     util.Component("user-service"),
	}
}

// Create registers a user.
func (s *UserService) Create(ctx context.Context, username string) (_ *models.User, err error) {
	ctx, span := util.StartSpan(ctx, "UserService.Create")
	defer util.EndSpan(span, &err)

	name, err := validateName("username", username)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: name}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// IssueToken opens a session for an existing user and returns its bearer token.
func (s *UserService) IssueToken(ctx context.Context, userID int64) (_ string, err error) {
	ctx, span := util.StartSpan(ctx, "UserService.IssueToken", attribute.Int64("user.id", userID))
	defer util.EndSpan(span, &err)

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return "", err
	}
	return s.sessions.IssueSession(ctx, userID, s.sessionTTL)
}

// Delete removes a user. Their shops go with them, their orders in other
// shops lose their client, and their sessions stop authenticating.
func (s *UserService) Delete(ctx context.Context, userID int64) (err error) {
	ctx, span := util.StartSpan(ctx, "UserService.Delete", attribute.Int64("user.id", userID))
	defer util.EndSpan(span, &err)

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.RevokeUserSessions(ctx, userID); err != nil {
		s.logger.Error("Failed to revoke sessions", zap.Int64("user_id", userID), zap.Error(err))
	}

	s.logger.Info("User deleted", zap.Int64("user_id", userID))
	event := &models.UserDeletedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeUserDeleted),
		UserID:    userID,
	}
	logPublishError(s.logger, event.EventType, s.events.PublishUserDeleted(ctx, event))
	return nil
}
