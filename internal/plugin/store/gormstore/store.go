// Package gormstore implements registrystore.MessagingStore with GORM so the
// postgres and sqlite plugins share one set of queries.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/model"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements MessagingStore using GORM.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GormConfig returns the GORM settings shared by every dialect.
func GormConfig(cfg *config.Config) *gorm.Config {
	gc := &gorm.Config{
		NowFunc:        model.Now,
		TranslateError: true,
		Logger:         logger.Discard,
	}
	if cfg != nil && cfg.DBLogQueries {
		gc.Logger = NewLogger(logger.Info)
	}
	return gc
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(resource string, id any) error {
	return &registrystore.NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

func conversationExists(tx *gorm.DB, conversationID uuid.UUID) error {
	var n int64
	if err := tx.Model(&model.Conversation{}).Where("id = ?", conversationID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to look up conversation: %w", err)
	}
	if n == 0 {
		return notFound("conversation", conversationID)
	}
	return nil
}

func isParticipant(tx *gorm.DB, conversationID uuid.UUID, userID string) (bool, error) {
	var n int64
	err := tx.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up membership: %w", err)
	}
	return n > 0, nil
}

func touchConversation(tx *gorm.DB, conversationID uuid.UUID) error {
	err := tx.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", model.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// missingUsers returns the ids in userIDs that have no users row.
func missingUsers(tx *gorm.DB, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var found []string
	if err := tx.Model(&model.User{}).Where("id IN ?", userIDs).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	present := make(map[string]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []string
	for _, id := range userIDs {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
