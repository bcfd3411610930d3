package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/messaging-service/internal/model"
	"github.com/google/uuid"
)

// Field names a filterable or orderable column of a listed resource.
type Field string

const (
	FieldSenderUsername      Field = "sender.username"
	FieldSenderID            Field = "sender.id"
	FieldConversationID      Field = "conversation.id"
	FieldSentAt              Field = "sent_at"
	FieldMessageBody         Field = "message_body"
	FieldIsRead              Field = "is_read"
	FieldParticipantUsername Field = "participants.username"
	FieldParticipantID       Field = "participants.id"
	FieldCreatedAt           Field = "created_at"
	FieldUpdatedAt           Field = "updated_at"
	FieldUsername            Field = "username"
)

// Comparison is how a criterion value is matched against its field.
type Comparison int

const (
	Exact Comparison = iota
	IContains
	GTE
	LTE
)

func (c Comparison) String() string {
	switch c {
	case Exact:
		return "exact"
	case IContains:
		return "icontains"
	case GTE:
		return "gte"
	case LTE:
		return "lte"
	default:
		return fmt.Sprintf("comparison(%d)", int(c))
	}
}

// Criterion is one typed predicate. Value is a string, uuid.UUID, bool or time.Time.
type Criterion struct {
	Field      Field
	Comparison Comparison
	Value      any
}

// OrderField orders results by a single field.
type OrderField struct {
	Field Field
	Desc  bool
}

// ListQuery is the storage-level form of a shaped listing request.
// Criteria are ANDed together.
type ListQuery struct {
	Criteria []Criterion
	Ordering []OrderField
	Limit    int
	Offset   int
}

// MessageScope restricts which messages a listing may return before any
// caller supplied criteria are applied.
type MessageScope struct {
	// VisibleTo limits results to conversations this user participates in.
	VisibleTo string
	// SenderID limits results to messages sent by this user.
	SenderID string
	// ConversationID limits results to one conversation.
	ConversationID *uuid.UUID
	// UnreadFor limits results to unread messages not sent by this user.
	UnreadFor string
}

// MessageDetail is the message representation returned to callers.
type MessageDetail struct {
	ID             uuid.UUID  `json:"message_id"`
	ConversationID uuid.UUID  `json:"conversation"`
	Sender         model.User `json:"sender"`
	MessageBody    string     `json:"message_body"`
	SentAt         time.Time  `json:"sent_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	IsRead         bool       `json:"is_read"`
}

// ConversationDetail is the conversation representation returned to callers.
type ConversationDetail struct {
	ID           uuid.UUID      `json:"conversation_id"`
	Participants []model.User   `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastMessage  *MessageDetail `json:"last_message"`
	MessageCount int64          `json:"message_count"`
}

// MessagingStore defines the data access interface for the messaging service.
// Implementations perform no authorization; callers are expected to consult
// the policy engine first.
type MessagingStore interface {
	// Users
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
	// EnsureUser inserts the user unless a row with the same id already exists.
	EnsureUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	ListUsers(ctx context.Context, query ListQuery) ([]model.User, int64, error)
	// StreamUsers calls fn with successive batches of users ordered by id.
	StreamUsers(ctx context.Context, batchSize int, fn func([]model.User) error) error

	// Membership
	IsParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (bool, error)
	AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (*model.User, error)
	RemoveParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error

	// Conversations
	// CreateConversation writes the conversation and all memberships atomically.
	CreateConversation(ctx context.Context, participantIDs []string) (*ConversationDetail, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (*ConversationDetail, error)
	ReplaceParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []string) (*ConversationDetail, error)
	DeleteConversation(ctx context.Context, conversationID uuid.UUID) error
	ListConversations(ctx context.Context, userID string, query ListQuery) ([]ConversationDetail, int64, error)

	// Messages
	// CreateMessage verifies sender membership in the same transaction as the insert.
	CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID string, body string) (*MessageDetail, error)
	GetMessage(ctx context.Context, messageID uuid.UUID) (*MessageDetail, error)
	UpdateMessageBody(ctx context.Context, messageID uuid.UUID, body string) (*MessageDetail, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	// MarkMessageRead sets is_read and reports whether the row changed.
	MarkMessageRead(ctx context.Context, messageID uuid.UUID) (*MessageDetail, bool, error)
	ListMessages(ctx context.Context, scope MessageScope, query ListQuery) ([]MessageDetail, int64, error)

	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error
}

type contextKey struct{}

// WithContext returns a new context carrying the given MessagingStore.
func WithContext(ctx context.Context, s MessagingStore) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext retrieves the MessagingStore from the context.
func FromContext(ctx context.Context) MessagingStore {
	s, _ := ctx.Value(contextKey{}).(MessagingStore)
	return s
}

// Loader creates a MessagingStore from config.
type Loader func(ctx context.Context) (MessagingStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
