package service

import (
	"context"
	"strings"

	"github.com/chirino/messaging-service/internal/policy"
	"github.com/chirino/messaging-service/internal/query"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
)

func messageTarget(m *registrystore.MessageDetail) policy.Target {
	return policy.Message(policy.MessageTarget{
		ID:             m.ID,
		SenderID:       m.Sender.ID,
		ConversationID: m.ConversationID,
	})
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return &registrystore.ValidationError{Field: "message_body", Message: "this field may not be blank"}
	}
	return nil
}

// CreateMessage posts body to a conversation as the caller.
func (s *Service) CreateMessage(ctx context.Context, caller policy.Caller, conversationID uuid.UUID, body string) (*registrystore.MessageDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	target := policy.Message(policy.MessageTarget{ConversationID: conversationID})
	if err := s.authorize(ctx, caller, policy.OpCreate, target); err != nil {
		return nil, err
	}
	return s.store.CreateMessage(ctx, conversationID, caller.UserID, body)
}

// loadMessage fetches the message and then authorizes op on it.
func (s *Service) loadMessage(ctx context.Context, caller policy.Caller, op policy.Operation, id uuid.UUID) (*registrystore.MessageDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, op, messageTarget(msg)); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage returns a message from a conversation the caller participates in.
func (s *Service) GetMessage(ctx context.Context, caller policy.Caller, id uuid.UUID) (*registrystore.MessageDetail, error) {
	return s.loadMessage(ctx, caller, policy.OpRead, id)
}

// UpdateMessage replaces the body of a message the caller sent.
func (s *Service) UpdateMessage(ctx context.Context, caller policy.Caller, id uuid.UUID, body string) (*registrystore.MessageDetail, error) {
	if _, err := s.loadMessage(ctx, caller, policy.OpUpdate, id); err != nil {
		return nil, err
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}
	return s.store.UpdateMessageBody(ctx, id, body)
}

// DeleteMessage hard deletes a message the caller sent.
func (s *Service) DeleteMessage(ctx context.Context, caller policy.Caller, id uuid.UUID) error {
	if _, err := s.loadMessage(ctx, caller, policy.OpDelete, id); err != nil {
		return err
	}
	return s.store.DeleteMessage(ctx, id)
}

// MarkMessageRead marks a message read and reports whether it was unread before.
func (s *Service) MarkMessageRead(ctx context.Context, caller policy.Caller, id uuid.UUID) (*registrystore.MessageDetail, bool, error) {
	if _, err := s.loadMessage(ctx, caller, policy.OpMarkRead, id); err != nil {
		return nil, false, err
	}
	return s.store.MarkMessageRead(ctx, id)
}

// ListMessages returns messages from every conversation the caller participates in.
func (s *Service) ListMessages(ctx context.Context, caller policy.Caller, req ListRequest) (query.Page[registrystore.MessageDetail], error) {
	return s.listMessages(ctx, caller, req, func(scope *registrystore.MessageScope) {})
}

// ListSentMessages returns the visible messages the caller sent.
func (s *Service) ListSentMessages(ctx context.Context, caller policy.Caller, req ListRequest) (query.Page[registrystore.MessageDetail], error) {
	return s.listMessages(ctx, caller, req, func(scope *registrystore.MessageScope) {
		scope.SenderID = caller.UserID
	})
}

// ListUnreadMessages returns unread messages sent to the caller by others.
func (s *Service) ListUnreadMessages(ctx context.Context, caller policy.Caller, req ListRequest) (query.Page[registrystore.MessageDetail], error) {
	return s.listMessages(ctx, caller, req, func(scope *registrystore.MessageScope) {
		scope.UnreadFor = caller.UserID
	})
}

func (s *Service) listMessages(ctx context.Context, caller policy.Caller, req ListRequest, narrow func(*registrystore.MessageScope)) (query.Page[registrystore.MessageDetail], error) {
	var page query.Page[registrystore.MessageDetail]
	if err := s.authorize(ctx, caller, policy.OpList, policy.Collection(policy.TargetMessage)); err != nil {
		return page, err
	}
	scope := registrystore.MessageScope{VisibleTo: caller.UserID}
	narrow(&scope)
	return s.pageMessages(ctx, scope, req)
}

// ListConversationMessages returns the messages of one conversation.
func (s *Service) ListConversationMessages(ctx context.Context, caller policy.Caller, conversationID uuid.UUID, req ListRequest) (query.Page[registrystore.MessageDetail], error) {
	var page query.Page[registrystore.MessageDetail]
	if err := requireCaller(caller); err != nil {
		return page, err
	}
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return page, err
	}
	target := policy.Message(policy.MessageTarget{ConversationID: conversationID})
	if err := s.authorize(ctx, caller, policy.OpList, target); err != nil {
		return page, err
	}
	return s.pageMessages(ctx, registrystore.MessageScope{ConversationID: &conversationID}, req)
}

func (s *Service) pageMessages(ctx context.Context, scope registrystore.MessageScope, req ListRequest) (query.Page[registrystore.MessageDetail], error) {
	var page query.Page[registrystore.MessageDetail]
	q, err := shape(query.Messages, req)
	if err != nil {
		return page, err
	}
	results, count, err := s.store.ListMessages(ctx, scope, q.List())
	if err != nil {
		return page, err
	}
	return query.NewPage(results, count, q.Page, req.BaseURL), nil
}
