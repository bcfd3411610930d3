package metrics

import (
	"context"
	"time"

	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/security"
	"github.com/google/uuid"
)

// Wrap returns a MessagingStore that records StoreLatency for every operation.
func Wrap(inner store.MessagingStore) store.MessagingStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.MessagingStore
}

func observe(op string, start time.Time) {
	if security.StoreLatency == nil {
		return
	}
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	defer observe("create_user", time.Now())
	return m.inner.CreateUser(ctx, user)
}

func (m *metricsStore) EnsureUser(ctx context.Context, user model.User) error {
	defer observe("ensure_user", time.Now())
	return m.inner.EnsureUser(ctx, user)
}

func (m *metricsStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	defer observe("get_user", time.Now())
	return m.inner.GetUser(ctx, userID)
}

func (m *metricsStore) ListUsers(ctx context.Context, query store.ListQuery) ([]model.User, int64, error) {
	defer observe("list_users", time.Now())
	return m.inner.ListUsers(ctx, query)
}

func (m *metricsStore) StreamUsers(ctx context.Context, batchSize int, fn func([]model.User) error) error {
	defer observe("stream_users", time.Now())
	return m.inner.StreamUsers(ctx, batchSize, fn)
}

func (m *metricsStore) IsParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (bool, error) {
	defer observe("is_participant", time.Now())
	return m.inner.IsParticipant(ctx, conversationID, userID)
}

func (m *metricsStore) AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (*model.User, error) {
	defer observe("add_participant", time.Now())
	return m.inner.AddParticipant(ctx, conversationID, userID)
}

func (m *metricsStore) RemoveParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error {
	defer observe("remove_participant", time.Now())
	return m.inner.RemoveParticipant(ctx, conversationID, userID)
}

func (m *metricsStore) CreateConversation(ctx context.Context, participantIDs []string) (*store.ConversationDetail, error) {
	defer observe("create_conversation", time.Now())
	return m.inner.CreateConversation(ctx, participantIDs)
}

func (m *metricsStore) GetConversation(ctx context.Context, conversationID uuid.UUID) (*store.ConversationDetail, error) {
	defer observe("get_conversation", time.Now())
	return m.inner.GetConversation(ctx, conversationID)
}

func (m *metricsStore) ReplaceParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []string) (*store.ConversationDetail, error) {
	defer observe("replace_participants", time.Now())
	return m.inner.ReplaceParticipants(ctx, conversationID, participantIDs)
}

func (m *metricsStore) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	defer observe("delete_conversation", time.Now())
	return m.inner.DeleteConversation(ctx, conversationID)
}

func (m *metricsStore) ListConversations(ctx context.Context, userID string, query store.ListQuery) ([]store.ConversationDetail, int64, error) {
	defer observe("list_conversations", time.Now())
	return m.inner.ListConversations(ctx, userID, query)
}

func (m *metricsStore) CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID string, body string) (*store.MessageDetail, error) {
	defer observe("create_message", time.Now())
	return m.inner.CreateMessage(ctx, conversationID, senderID, body)
}

func (m *metricsStore) GetMessage(ctx context.Context, messageID uuid.UUID) (*store.MessageDetail, error) {
	defer observe("get_message", time.Now())
	return m.inner.GetMessage(ctx, messageID)
}

func (m *metricsStore) UpdateMessageBody(ctx context.Context, messageID uuid.UUID, body string) (*store.MessageDetail, error) {
	defer observe("update_message", time.Now())
	return m.inner.UpdateMessageBody(ctx, messageID, body)
}

func (m *metricsStore) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	defer observe("delete_message", time.Now())
	return m.inner.DeleteMessage(ctx, messageID)
}

func (m *metricsStore) MarkMessageRead(ctx context.Context, messageID uuid.UUID) (*store.MessageDetail, bool, error) {
	defer observe("mark_message_read", time.Now())
	return m.inner.MarkMessageRead(ctx, messageID)
}

func (m *metricsStore) ListMessages(ctx context.Context, scope store.MessageScope, query store.ListQuery) ([]store.MessageDetail, int64, error) {
	defer observe("list_messages", time.Now())
	return m.inner.ListMessages(ctx, scope, query)
}

func (m *metricsStore) Ping(ctx context.Context) error {
	return m.inner.Ping(ctx)
}
