package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chirino/messaging-service/internal/model"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

func (s *Store) CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID string, body string) (*registrystore.MessageDetail, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &registrystore.ValidationError{Field: "message_body", Message: "may not be blank"}
	}
	now := model.Now()
	msg := model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		MessageBody:    body,
		SentAt:         now,
		UpdatedAt:      now,
		IsRead:         false,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := conversationExists(tx, conversationID); err != nil {
			return err
		}
		member, err := isParticipant(tx, conversationID, senderID)
		if err != nil {
			return err
		}
		if !member {
			return &registrystore.ValidationError{Field: "sender", Message: "sender must be a participant of the conversation"}
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, msg.ID)
}

func (s *Store) GetMessage(ctx context.Context, messageID uuid.UUID) (*registrystore.MessageDetail, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("message", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	details, err := s.messageDetails(ctx, []model.Message{msg})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *Store) UpdateMessageBody(ctx context.Context, messageID uuid.UUID, body string) (*registrystore.MessageDetail, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &registrystore.ValidationError{Field: "message_body", Message: "may not be blank"}
	}
	result := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{"message_body": body, "updated_at": model.Now()})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound("message", messageID)
	}
	return s.GetMessage(ctx, messageID)
}

func (s *Store) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", messageID).Delete(&model.Message{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("message", messageID)
	}
	return nil
}

func (s *Store) MarkMessageRead(ctx context.Context, messageID uuid.UUID) (*registrystore.MessageDetail, bool, error) {
	result := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND is_read = ?", messageID, false).
		Updates(map[string]interface{}{"is_read": true, "updated_at": model.Now()})
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to mark message read: %w", result.Error)
	}
	detail, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	return detail, result.RowsAffected > 0, nil
}

func (s *Store) ListMessages(ctx context.Context, scope registrystore.MessageScope, q registrystore.ListQuery) ([]registrystore.MessageDetail, int64, error) {
	base := s.db.WithContext(ctx).Model(&model.Message{})
	if scope.VisibleTo != "" {
		base = base.Where("EXISTS (SELECT 1 FROM conversation_participants vp WHERE vp.conversation_id = messages.conversation_id AND vp.user_id = ?)", scope.VisibleTo)
	}
	if scope.SenderID != "" {
		base = base.Where("messages.sender_id = ?", scope.SenderID)
	}
	if scope.ConversationID != nil {
		base = base.Where("messages.conversation_id = ?", *scope.ConversationID)
	}
	if scope.UnreadFor != "" {
		base = base.Where("messages.is_read = ? AND messages.sender_id <> ?", false, scope.UnreadFor)
	}
	base, err := applyCriteria(base, messageColumns, q.Criteria)
	if err != nil {
		return nil, 0, err
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	var msgs []model.Message
	query := applyPage(applyOrdering(base.Session(&gorm.Session{}), messageColumns, q.Ordering, "messages.id"), q)
	if err := query.Find(&msgs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	details, err := s.messageDetails(ctx, msgs)
	if err != nil {
		return nil, 0, err
	}
	return details, count, nil
}

// messageDetails attaches each message's sender with a single lookup.
func (s *Store) messageDetails(ctx context.Context, msgs []model.Message) ([]registrystore.MessageDetail, error) {
	if len(msgs) == 0 {
		return []registrystore.MessageDetail{}, nil
	}
	senderIDs := lo.Uniq(lo.Map(msgs, func(m model.Message, _ int) string { return m.SenderID }))
	var senders []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", senderIDs).Find(&senders).Error; err != nil {
		return nil, fmt.Errorf("failed to load senders: %w", err)
	}
	byID := lo.KeyBy(senders, func(u model.User) string { return u.ID })

	out := make([]registrystore.MessageDetail, len(msgs))
	for i, m := range msgs {
		sender, ok := byID[m.SenderID]
		if !ok {
			sender = model.User{ID: m.SenderID}
		}
		out[i] = registrystore.MessageDetail{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         sender,
			MessageBody:    m.MessageBody,
			SentAt:         m.SentAt.UTC(),
			UpdatedAt:      m.UpdatedAt.UTC(),
			IsRead:         m.IsRead,
		}
	}
	return out, nil
}
