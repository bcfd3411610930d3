package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/model"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	user.ID = strings.TrimSpace(user.ID)
	user.Username = strings.TrimSpace(user.Username)
	if user.ID == "" {
		return nil, &registrystore.ValidationError{Field: "id", Message: "is required"}
	}
	if user.Username == "" {
		return nil, &registrystore.ValidationError{Field: "username", Message: "is required"}
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, &registrystore.ConflictError{Message: "a user with that id or username already exists"}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// EnsureUser inserts user unless its id already exists. When the username is
// taken by a different id the row is stored as "<username>#<id>".
func (s *Store) EnsureUser(ctx context.Context, user model.User) error {
	if user.Username == "" {
		user.Username = user.ID
	}
	err := s.insertIfAbsent(ctx, user)
	if isDuplicate(err) {
		log.Warn("Username already taken; provisioning with a qualified username", "user", user.ID, "username", user.Username)
		user.Username = user.Username + "#" + user.ID
		err = s.insertIfAbsent(ctx, user)
	}
	if err != nil {
		return fmt.Errorf("failed to provision user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) insertIfAbsent(ctx context.Context, user model.User) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&user).Error
}

func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, q registrystore.ListQuery) ([]model.User, int64, error) {
	base, err := applyCriteria(s.db.WithContext(ctx).Model(&model.User{}), userColumns, q.Criteria)
	if err != nil {
		return nil, 0, err
	}
	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	var users []model.User
	query := applyPage(applyOrdering(base.Session(&gorm.Session{}), userColumns, q.Ordering, "users.id"), q)
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, count, nil
}

func (s *Store) StreamUsers(ctx context.Context, batchSize int, fn func([]model.User) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	var batch []model.User
	result := s.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return fmt.Errorf("failed to stream users: %w", result.Error)
	}
	return nil
}
