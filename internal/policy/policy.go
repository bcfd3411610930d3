// Package policy decides whether a caller may perform an operation on a
// conversation or message. Decisions are computed from the current membership
// state on every call and have no side effects.
package policy

import (
	"context"
	"fmt"

	"github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
)

// Operation is an action a caller attempts on a target.
type Operation string

const (
	OpRead              Operation = "read"
	OpList              Operation = "list"
	OpCreate            Operation = "create"
	OpUpdate            Operation = "update"
	OpDelete            Operation = "delete"
	OpAddParticipant    Operation = "add_participant"
	OpRemoveParticipant Operation = "remove_participant"
	OpMarkRead          Operation = "mark_read"
)

// Caller is the identity making the current request. An empty UserID means
// the request is unauthenticated.
type Caller struct {
	UserID string
}

func (c Caller) Authenticated() bool { return c.UserID != "" }

// TargetKind selects which payload of a Target is populated.
type TargetKind int

const (
	TargetConversation TargetKind = iota
	TargetMessage
	TargetUser
)

func (k TargetKind) String() string {
	switch k {
	case TargetConversation:
		return "conversation"
	case TargetMessage:
		return "message"
	case TargetUser:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConversationTarget identifies an existing conversation.
type ConversationTarget struct {
	ID uuid.UUID
}

// MessageTarget describes a message. For creation only ConversationID is set.
type MessageTarget struct {
	ID             uuid.UUID
	SenderID       string
	ConversationID uuid.UUID
}

// Target is the object of an operation. Exactly one payload matching Kind is
// set; a target with no payload denotes the whole collection of that kind.
type Target struct {
	Kind         TargetKind
	Conversation *ConversationTarget
	Message      *MessageTarget
}

// Conversation targets an existing conversation.
func Conversation(id uuid.UUID) Target {
	return Target{Kind: TargetConversation, Conversation: &ConversationTarget{ID: id}}
}

// Message targets a message.
func Message(m MessageTarget) Target {
	return Target{Kind: TargetMessage, Message: &m}
}

// Collection targets every object of a kind, such as for creation or a
// listing that the store scopes to the caller.
func Collection(kind TargetKind) Target {
	return Target{Kind: kind}
}

// IsCollection reports whether the target carries no object payload.
func (t Target) IsCollection() bool {
	return t.Conversation == nil && t.Message == nil
}

// conversationID returns the conversation whose membership governs the target.
func (t Target) conversationID() (uuid.UUID, bool) {
	switch {
	case t.Kind == TargetConversation && t.Conversation != nil:
		return t.Conversation.ID, true
	case t.Kind == TargetMessage && t.Message != nil:
		return t.Message.ConversationID, true
	default:
		return uuid.Nil, false
	}
}

// MembershipReader answers membership questions from the persistence store.
type MembershipReader interface {
	IsParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (bool, error)
}

// Authorizer decides whether caller may perform op on target. It returns nil
// when allowed, *store.UnauthenticatedError or *store.ForbiddenError when
// denied, or another error when the decision could not be made.
type Authorizer interface {
	Authorize(ctx context.Context, caller Caller, op Operation, target Target) error
}

// Facts are the per-check inputs rules are evaluated against.
type Facts struct {
	Authenticated bool   `json:"authenticated"`
	Collection    bool   `json:"collection"`
	IsParticipant bool   `json:"is_participant"`
	IsSender      bool   `json:"is_sender"`
	Operation     string `json:"operation"`
	Kind          string `json:"kind"`
}

// gatherFacts reads membership for the target's conversation. Membership is
// only queried for authenticated callers with an object target.
func gatherFacts(ctx context.Context, members MembershipReader, caller Caller, op Operation, target Target) (Facts, error) {
	f := Facts{
		Authenticated: caller.Authenticated(),
		Collection:    target.IsCollection(),
		Operation:     string(op),
		Kind:          target.Kind.String(),
	}
	if !f.Authenticated {
		return f, nil
	}
	if target.Kind == TargetMessage && target.Message != nil {
		f.IsSender = target.Message.SenderID != "" && target.Message.SenderID == caller.UserID
	}
	if convID, ok := target.conversationID(); ok {
		member, err := members.IsParticipant(ctx, convID, caller.UserID)
		if err != nil {
			return f, fmt.Errorf("policy: membership lookup: %w", err)
		}
		f.IsParticipant = member
	}
	return f, nil
}

func unauthenticated() error {
	return &store.UnauthenticatedError{Message: "authentication credentials were not provided"}
}

func forbidden(op Operation, target Target) error {
	switch {
	case target.Kind == TargetMessage && (op == OpUpdate || op == OpDelete):
		return &store.ForbiddenError{Message: "only the sender may modify this message"}
	case target.Kind == TargetConversation || target.Kind == TargetMessage:
		return &store.ForbiddenError{Message: "you are not a participant of this conversation"}
	default:
		return &store.ForbiddenError{}
	}
}
