package service

import (
	"context"
	"strings"

	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/policy"
	"github.com/chirino/messaging-service/internal/query"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
)

// ListConversations returns the conversations the caller participates in.
func (s *Service) ListConversations(ctx context.Context, caller policy.Caller, req ListRequest) (query.Page[registrystore.ConversationDetail], error) {
	var page query.Page[registrystore.ConversationDetail]
	if err := s.authorize(ctx, caller, policy.OpList, policy.Collection(policy.TargetConversation)); err != nil {
		return page, err
	}
	q, err := shape(query.Conversations, req)
	if err != nil {
		return page, err
	}
	results, count, err := s.store.ListConversations(ctx, caller.UserID, q.List())
	if err != nil {
		return page, err
	}
	return query.NewPage(results, count, q.Page, req.BaseURL), nil
}

// CreateConversation creates a conversation between the caller and participantIDs.
func (s *Service) CreateConversation(ctx context.Context, caller policy.Caller, participantIDs []string) (*registrystore.ConversationDetail, error) {
	if err := s.authorize(ctx, caller, policy.OpCreate, policy.Collection(policy.TargetConversation)); err != nil {
		return nil, err
	}
	ids := normalizeIDs(append([]string{caller.UserID}, participantIDs...))
	return s.store.CreateConversation(ctx, ids)
}

// loadConversation fetches the conversation and then authorizes op on it.
func (s *Service) loadConversation(ctx context.Context, caller policy.Caller, op policy.Operation, id uuid.UUID) (*registrystore.ConversationDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, op, policy.Conversation(id)); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation returns one conversation the caller participates in.
func (s *Service) GetConversation(ctx context.Context, caller policy.Caller, id uuid.UUID) (*registrystore.ConversationDetail, error) {
	return s.loadConversation(ctx, caller, policy.OpRead, id)
}

// UpdateConversation replaces the participant set.
func (s *Service) UpdateConversation(ctx context.Context, caller policy.Caller, id uuid.UUID, participantIDs []string) (*registrystore.ConversationDetail, error) {
	if _, err := s.loadConversation(ctx, caller, policy.OpUpdate, id); err != nil {
		return nil, err
	}
	ids := normalizeIDs(participantIDs)
	if len(ids) == 0 {
		return nil, &registrystore.ValidationError{Field: "participant_ids", Message: "a conversation needs at least one participant"}
	}
	return s.store.ReplaceParticipants(ctx, id, ids)
}

// DeleteConversation deletes the conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, caller policy.Caller, id uuid.UUID) error {
	if _, err := s.loadConversation(ctx, caller, policy.OpDelete, id); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, id)
}

// AddParticipant adds userID to the conversation and returns the added user.
func (s *Service) AddParticipant(ctx context.Context, caller policy.Caller, id uuid.UUID, userID string) (*model.User, error) {
	if _, err := s.loadConversation(ctx, caller, policy.OpAddParticipant, id); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &registrystore.ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	return s.store.AddParticipant(ctx, id, userID)
}

// RemoveParticipant removes userID from the conversation.
func (s *Service) RemoveParticipant(ctx context.Context, caller policy.Caller, id uuid.UUID, userID string) error {
	if _, err := s.loadConversation(ctx, caller, policy.OpRemoveParticipant, id); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &registrystore.ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	return s.store.RemoveParticipant(ctx, id, userID)
}
