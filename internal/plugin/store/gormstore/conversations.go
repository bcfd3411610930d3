package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/messaging-service/internal/model"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

func (s *Store) IsParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (bool, error) {
	return isParticipant(s.db.WithContext(ctx), conversationID, userID)
}

func (s *Store) CreateConversation(ctx context.Context, participantIDs []string) (*registrystore.ConversationDetail, error) {
	participantIDs = lo.Uniq(participantIDs)
	if len(participantIDs) == 0 {
		return nil, &registrystore.ValidationError{Field: "participant_ids", Message: "a conversation needs at least one participant"}
	}
	now := model.Now()
	conv := model.Conversation{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		missing, err := missingUsers(tx, participantIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return notFound("user", missing[0])
		}
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		rows := lo.Map(participantIDs, func(id string, _ int) model.ConversationParticipant {
			return model.ConversationParticipant{ConversationID: conv.ID, UserID: id, JoinedAt: now}
		})
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to add participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, conv.ID)
}

func (s *Store) GetConversation(ctx context.Context, conversationID uuid.UUID) (*registrystore.ConversationDetail, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("conversation", conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	details, err := s.conversationDetails(ctx, []model.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *Store) ReplaceParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []string) (*registrystore.ConversationDetail, error) {
	participantIDs = lo.Uniq(participantIDs)
	if len(participantIDs) == 0 {
		return nil, &registrystore.ValidationError{Field: "participant_ids", Message: "a conversation needs at least one participant"}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := conversationExists(tx, conversationID); err != nil {
			return err
		}
		missing, err := missingUsers(tx, participantIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return notFound("user", missing[0])
		}

		var current []string
		if err := tx.Model(&model.ConversationParticipant{}).
			Where("conversation_id = ?", conversationID).
			Pluck("user_id", &current).Error; err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		removed, added := lo.Difference(current, participantIDs)
		if len(removed) > 0 {
			if err := tx.Where("conversation_id = ? AND user_id IN ?", conversationID, removed).
				Delete(&model.ConversationParticipant{}).Error; err != nil {
				return fmt.Errorf("failed to remove participants: %w", err)
			}
		}
		if len(added) > 0 {
			now := model.Now()
			rows := lo.Map(added, func(id string, _ int) model.ConversationParticipant {
				return model.ConversationParticipant{ConversationID: conversationID, UserID: id, JoinedAt: now}
			})
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to add participants: %w", err)
			}
		}
		return touchConversation(tx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, conversationID)
}

func (s *Store) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := conversationExists(tx, conversationID); err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&model.ConversationParticipant{}).Error; err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}
		if err := tx.Where("id = ?", conversationID).Delete(&model.Conversation{}).Error; err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return nil
	})
}

func (s *Store) AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := conversationExists(tx, conversationID); err != nil {
			return err
		}
		err := tx.Where("id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user", userID)
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		member, err := isParticipant(tx, conversationID, userID)
		if err != nil {
			return err
		}
		if member {
			return &registrystore.ConflictError{Message: "user is already a participant"}
		}
		row := model.ConversationParticipant{ConversationID: conversationID, UserID: userID, JoinedAt: model.Now()}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return &registrystore.ConflictError{Message: "user is already a participant"}
			}
			return fmt.Errorf("failed to add participant: %w", err)
		}
		return touchConversation(tx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) RemoveParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := conversationExists(tx, conversationID); err != nil {
			return err
		}
		member, err := isParticipant(tx, conversationID, userID)
		if err != nil {
			return err
		}
		if !member {
			return &registrystore.ConflictError{Message: "user is not a participant"}
		}
		var remaining int64
		if err := tx.Model(&model.ConversationParticipant{}).
			Where("conversation_id = ?", conversationID).
			Count(&remaining).Error; err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}
		if remaining <= 1 {
			return &registrystore.ConflictError{Message: "cannot remove the last participant"}
		}
		if err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Delete(&model.ConversationParticipant{}).Error; err != nil {
			return fmt.Errorf("failed to remove participant: %w", err)
		}
		return touchConversation(tx, conversationID)
	})
}

func (s *Store) ListConversations(ctx context.Context, userID string, q registrystore.ListQuery) ([]registrystore.ConversationDetail, int64, error) {
	base := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("EXISTS (SELECT 1 FROM conversation_participants vp WHERE vp.conversation_id = conversations.id AND vp.user_id = ?)", userID)
	base, err := applyCriteria(base, conversationColumns, q.Criteria)
	if err != nil {
		return nil, 0, err
	}
	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	var convs []model.Conversation
	query := applyPage(applyOrdering(base.Session(&gorm.Session{}), conversationColumns, q.Ordering, "conversations.id"), q)
	if err := query.Find(&convs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	details, err := s.conversationDetails(ctx, convs)
	if err != nil {
		return nil, 0, err
	}
	return details, count, nil
}

type participantRow struct {
	ConversationID uuid.UUID
	ID             string
	Username       string
	Email          string
	FirstName      string
	LastName       string
}

type countRow struct {
	ConversationID uuid.UUID
	N              int64
}

// conversationDetails loads participants, message counts and the latest
// message for a page of conversations with a fixed number of queries.
func (s *Store) conversationDetails(ctx context.Context, convs []model.Conversation) ([]registrystore.ConversationDetail, error) {
	if len(convs) == 0 {
		return []registrystore.ConversationDetail{}, nil
	}
	ids := lo.Map(convs, func(c model.Conversation, _ int) uuid.UUID { return c.ID })
	db := s.db.WithContext(ctx)

	var prows []participantRow
	if err := db.Table("conversation_participants p").
		Select("p.conversation_id, u.id, u.username, u.email, u.first_name, u.last_name").
		Joins("JOIN users u ON u.id = p.user_id").
		Where("p.conversation_id IN ?", ids).
		Order("p.joined_at ASC, u.id ASC").
		Scan(&prows).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	participants := map[uuid.UUID][]model.User{}
	for _, r := range prows {
		participants[r.ConversationID] = append(participants[r.ConversationID], model.User{
			ID: r.ID, Username: r.Username, Email: r.Email, FirstName: r.FirstName, LastName: r.LastName,
		})
	}

	var crows []countRow
	if err := db.Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&crows).Error; err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	counts := lo.SliceToMap(crows, func(r countRow) (uuid.UUID, int64) { return r.ConversationID, r.N })

	var latest []model.Message
	if err := db.Where("conversation_id IN ?", ids).
		Where("sent_at = (SELECT MAX(m2.sent_at) FROM messages m2 WHERE m2.conversation_id = messages.conversation_id)").
		Order("id DESC").
		Find(&latest).Error; err != nil {
		return nil, fmt.Errorf("failed to load last messages: %w", err)
	}
	lastDetails, err := s.messageDetails(ctx, latest)
	if err != nil {
		return nil, err
	}
	last := map[uuid.UUID]*registrystore.MessageDetail{}
	for i := range lastDetails {
		if _, ok := last[lastDetails[i].ConversationID]; !ok {
			last[lastDetails[i].ConversationID] = &lastDetails[i]
		}
	}

	out := make([]registrystore.ConversationDetail, len(convs))
	for i, c := range convs {
		ps := participants[c.ID]
		if ps == nil {
			ps = []model.User{}
		}
		out[i] = registrystore.ConversationDetail{
			ID:           c.ID,
			Participants: ps,
			CreatedAt:    c.CreatedAt.UTC(),
			UpdatedAt:    c.UpdatedAt.UTC(),
			LastMessage:  last[c.ID],
			MessageCount: counts[c.ID],
		}
	}
	return out, nil
}
