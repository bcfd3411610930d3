package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeMembers struct {
	participants map[uuid.UUID]map[string]bool
	calls        int
	err          error
}

func (f *fakeMembers) IsParticipant(_ context.Context, conversationID uuid.UUID, userID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.participants[conversationID][userID], nil
}

func (f *fakeMembers) set(conversationID uuid.UUID, users ...string) {
	m := map[string]bool{}
	for _, u := range users {
		m[u] = true
	}
	f.participants[conversationID] = m
}

type outcome int

const (
	allowed outcome = iota
	denied
	unauth
)

func engines(t *testing.T, members MembershipReader) map[string]Authorizer {
	t.Helper()
	re, err := NewRegoEngine(context.Background(), members, "")
	require.NoError(t, err)
	return map[string]Authorizer{
		"rules": NewRuleEngine(members),
		"rego":  re,
	}
}

func requireOutcome(t *testing.T, want outcome, err error) {
	t.Helper()
	switch want {
	case allowed:
		require.NoError(t, err)
	case denied:
		var fe *store.ForbiddenError
		require.True(t, errors.As(err, &fe), "expected ForbiddenError, got %v", err)
	case unauth:
		var ue *store.UnauthenticatedError
		require.True(t, errors.As(err, &ue), "expected UnauthenticatedError, got %v", err)
	}
}

func TestAuthorize_RuleTable(t *testing.T) {
	conv := uuid.New()
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	members.set(conv, "alice", "bob")

	aliceMsg := Message(MessageTarget{ID: uuid.New(), SenderID: "alice", ConversationID: conv})

	cases := []struct {
		name   string
		caller string
		op     Operation
		target Target
		want   outcome
	}{
		{"participant reads conversation", "alice", OpRead, Conversation(conv), allowed},
		{"outsider reads conversation", "carol", OpRead, Conversation(conv), denied},
		{"anonymous reads conversation", "", OpRead, Conversation(conv), unauth},
		{"anyone creates conversation", "carol", OpCreate, Collection(TargetConversation), allowed},
		{"anonymous creates conversation", "", OpCreate, Collection(TargetConversation), unauth},
		{"participant updates conversation", "bob", OpUpdate, Conversation(conv), allowed},
		{"outsider deletes conversation", "carol", OpDelete, Conversation(conv), denied},
		{"participant adds participant", "bob", OpAddParticipant, Conversation(conv), allowed},
		{"outsider adds participant", "carol", OpAddParticipant, Conversation(conv), denied},
		{"outsider removes participant", "carol", OpRemoveParticipant, Conversation(conv), denied},
		{"conversation collection listing", "carol", OpList, Collection(TargetConversation), allowed},
		{"conversation collection read", "carol", OpRead, Collection(TargetConversation), denied},

		{"participant reads message", "bob", OpRead, aliceMsg, allowed},
		{"outsider reads message", "carol", OpRead, aliceMsg, denied},
		{"participant lists conversation messages", "bob", OpList, Message(MessageTarget{ConversationID: conv}), allowed},
		{"outsider lists conversation messages", "carol", OpList, Message(MessageTarget{ConversationID: conv}), denied},
		{"participant sends message", "bob", OpCreate, Message(MessageTarget{ConversationID: conv}), allowed},
		{"outsider sends message", "carol", OpCreate, Message(MessageTarget{ConversationID: conv}), denied},
		{"sender updates message", "alice", OpUpdate, aliceMsg, allowed},
		{"participant updates others message", "bob", OpUpdate, aliceMsg, denied},
		{"participant deletes others message", "bob", OpDelete, aliceMsg, denied},
		{"sender deletes message", "alice", OpDelete, aliceMsg, allowed},
		{"recipient marks read", "bob", OpMarkRead, aliceMsg, allowed},
		{"sender marks read", "alice", OpMarkRead, aliceMsg, allowed},
		{"outsider marks read", "carol", OpMarkRead, aliceMsg, denied},
		{"message collection listing", "carol", OpList, Collection(TargetMessage), allowed},

		{"user listing", "carol", OpList, Collection(TargetUser), allowed},
		{"anonymous user listing", "", OpList, Collection(TargetUser), unauth},

		{"unknown pair", "alice", OpMarkRead, Conversation(conv), denied},
		{"unknown user op", "alice", OpDelete, Collection(TargetUser), denied},
	}

	for engineName, engine := range engines(t, members) {
		for _, tc := range cases {
			t.Run(engineName+"/"+tc.name, func(t *testing.T) {
				err := engine.Authorize(context.Background(), Caller{UserID: tc.caller}, tc.op, tc.target)
				requireOutcome(t, tc.want, err)
			})
		}
	}
}

func TestAuthorize_MembershipReadFresh(t *testing.T) {
	conv := uuid.New()
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	members.set(conv, "alice", "bob")

	for name, engine := range engines(t, members) {
		t.Run(name, func(t *testing.T) {
			members.set(conv, "alice", "bob")
			require.NoError(t, engine.Authorize(context.Background(), Caller{UserID: "bob"}, OpRead, Conversation(conv)))

			members.set(conv, "alice")
			err := engine.Authorize(context.Background(), Caller{UserID: "bob"}, OpRead, Conversation(conv))
			requireOutcome(t, denied, err)
		})
	}
}

func TestAuthorize_UnauthenticatedSkipsMembership(t *testing.T) {
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	for name, engine := range engines(t, members) {
		t.Run(name, func(t *testing.T) {
			members.calls = 0
			err := engine.Authorize(context.Background(), Caller{}, OpRead, Conversation(uuid.New()))
			requireOutcome(t, unauth, err)
			require.Zero(t, members.calls)
		})
	}
}

func TestAuthorize_MembershipErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	members := &fakeMembers{err: boom}
	for name, engine := range engines(t, members) {
		t.Run(name, func(t *testing.T) {
			err := engine.Authorize(context.Background(), Caller{UserID: "alice"}, OpRead, Conversation(uuid.New()))
			require.ErrorIs(t, err, boom)
		})
	}
}

func TestAuthorize_ForbiddenMessages(t *testing.T) {
	conv := uuid.New()
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	members.set(conv, "alice", "bob")
	engine := NewRuleEngine(members)

	err := engine.Authorize(context.Background(), Caller{UserID: "bob"}, OpDelete,
		Message(MessageTarget{ID: uuid.New(), SenderID: "alice", ConversationID: conv}))
	require.EqualError(t, err, "only the sender may modify this message")

	err = engine.Authorize(context.Background(), Caller{UserID: "carol"}, OpRead, Conversation(conv))
	require.EqualError(t, err, "you are not a participant of this conversation")
}

func TestRegoEngine_ReloadFromPolicyDir(t *testing.T) {
	conv := uuid.New()
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	members.set(conv, "alice")

	ctx := context.Background()
	engine, err := NewRegoEngine(ctx, members, "")
	require.NoError(t, err)
	require.NoError(t, engine.Authorize(ctx, Caller{UserID: "alice"}, OpRead, Conversation(conv)))

	dir := t.TempDir()
	lockdown := "package messaging.authz\n\ndefault allow = false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authz.rego"), []byte(lockdown), 0o600))
	require.NoError(t, engine.Reload(ctx, dir))
	require.Equal(t, lockdown, engine.Source())

	err = engine.Authorize(ctx, Caller{UserID: "alice"}, OpRead, Conversation(conv))
	requireOutcome(t, denied, err)
}

func TestRegoEngine_ReloadKeepsPolicyOnCompileError(t *testing.T) {
	ctx := context.Background()
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	engine, err := NewRegoEngine(ctx, members, "")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authz.rego"), []byte("package broken\nallow if {"), 0o600))
	require.Error(t, engine.Reload(ctx, dir))
	require.Equal(t, defaultAuthzRego, engine.Source())
}

func TestRegoEngine_MissingPolicyFileUsesDefault(t *testing.T) {
	ctx := context.Background()
	members := &fakeMembers{participants: map[uuid.UUID]map[string]bool{}}
	engine, err := NewRegoEngine(ctx, members, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, defaultAuthzRego, engine.Source())
}
