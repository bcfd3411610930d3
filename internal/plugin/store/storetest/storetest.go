// Package storetest holds the MessagingStore conformance suite shared by every
// store plugin's tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chirino/messaging-service/internal/model"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Setup returns a freshly migrated, empty store.
type Setup func(t *testing.T) (registrystore.MessagingStore, context.Context)

// Run executes the conformance suite against the store returned by setup.
func Run(t *testing.T, setup Setup) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s registrystore.MessagingStore, ctx context.Context)
	}{
		{"Users", testUsers},
		{"EnsureUserUsernameTaken", testEnsureUserUsernameTaken},
		{"StreamUsers", testStreamUsers},
		{"CreateConversation", testCreateConversation},
		{"CreateConversationUnknownUserIsAtomic", testCreateConversationUnknownUser},
		{"Participants", testParticipants},
		{"ReplaceParticipants", testReplaceParticipants},
		{"DeleteConversationCascades", testDeleteConversation},
		{"Messages", testMessages},
		{"CreateMessageRequiresParticipant", testCreateMessageRequiresParticipant},
		{"MarkMessageReadIdempotent", testMarkMessageRead},
		{"ListMessagesScopes", testListMessagesScopes},
		{"ListMessagesFilters", testListMessagesFilters},
		{"ListMessagesPagingAndOrdering", testListMessagesPaging},
		{"ListConversations", testListConversations},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ctx := setup(t)
			tc.fn(t, s, ctx)
		})
	}
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.True(t, errors.As(err, &target), "expected %T, got %v", target, err)
	return target
}

func seedUsers(t *testing.T, s registrystore.MessagingStore, ctx context.Context, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := s.CreateUser(ctx, model.User{ID: id, Username: id, Email: id + "@example.com"})
		require.NoError(t, err)
	}
}

func testUsers(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	u, err := s.CreateUser(ctx, model.User{ID: "u-1", Username: "alice", Email: "alice@example.com", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = s.CreateUser(ctx, model.User{ID: "u-2", Username: "alice"})
	requireErrorAs[*registrystore.ConflictError](t, err)

	_, err = s.CreateUser(ctx, model.User{ID: "u-3"})
	ve := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "username", ve.Field)

	require.NoError(t, s.EnsureUser(ctx, model.User{ID: "u-1", Username: "renamed"}))
	got, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username, "EnsureUser must not overwrite")

	require.NoError(t, s.EnsureUser(ctx, model.User{ID: "u-4"}))
	got, err = s.GetUser(ctx, "u-4")
	require.NoError(t, err)
	assert.Equal(t, "u-4", got.Username)

	_, err = s.GetUser(ctx, "nobody")
	requireErrorAs[*registrystore.NotFoundError](t, err)

	users, count, err := s.ListUsers(ctx, registrystore.ListQuery{
		Criteria: []registrystore.Criterion{{Field: registrystore.FieldUsername, Comparison: registrystore.IContains, Value: "LIC"}},
		Ordering: []registrystore.OrderField{{Field: registrystore.FieldUsername}},
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, users, 1)
	assert.Equal(t, "u-1", users[0].ID)
}

func testEnsureUserUsernameTaken(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	_, err := s.CreateUser(ctx, model.User{ID: "1", Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, s.EnsureUser(ctx, model.User{ID: "alice", Username: "alice"}))
	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice#alice", got.Username)

	require.NoError(t, s.EnsureUser(ctx, model.User{ID: "alice", Username: "alice"}))
	got, err = s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice#alice", got.Username)

	original, err := s.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", original.Username)

	conv, err := s.CreateConversation(ctx, []string{"alice", "1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "1"}, ParticipantIDs(conv))
}

func testStreamUsers(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	for i := 0; i < 7; i++ {
		seedUsers(t, s, ctx, fmt.Sprintf("user-%02d", i))
	}
	var batches []int
	var seen []string
	err := s.StreamUsers(ctx, 3, func(batch []model.User) error {
		batches = append(batches, len(batch))
		for _, u := range batch {
			seen = append(seen, u.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, batches)
	assert.Len(t, seen, 7)

	stop := errors.New("stop")
	err = s.StreamUsers(ctx, 3, func([]model.User) error { return stop })
	require.ErrorIs(t, err, stop)
}

func testCreateConversation(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob")

	conv, err := s.CreateConversation(ctx, []string{"alice", "bob", "bob"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, conv.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, ParticipantIDs(conv))
	assert.Nil(t, conv.LastMessage)
	assert.Zero(t, conv.MessageCount)
	assert.False(t, conv.CreatedAt.IsZero())

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.True(t, conv.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetConversation(ctx, uuid.New())
	requireErrorAs[*registrystore.NotFoundError](t, err)

	_, err = s.CreateConversation(ctx, nil)
	requireErrorAs[*registrystore.ValidationError](t, err)
}

func testCreateConversationUnknownUser(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice")

	_, err := s.CreateConversation(ctx, []string{"alice", "ghost"})
	nf := requireErrorAs[*registrystore.NotFoundError](t, err)
	assert.Equal(t, "user", nf.Resource)
	assert.Equal(t, "ghost", nf.ID)

	convs, count, err := s.ListConversations(ctx, "alice", registrystore.ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, convs)
}

func testParticipants(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob", "carol")
	conv, err := s.CreateConversation(ctx, []string{"alice"})
	require.NoError(t, err)

	ok, err := s.IsParticipant(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(2 * time.Millisecond)
	added, err := s.AddParticipant(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", added.Username)

	ok, err = s.IsParticipant(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt), "participant changes bump updated_at")

	_, err = s.AddParticipant(ctx, conv.ID, "bob")
	requireErrorAs[*registrystore.ConflictError](t, err)

	_, err = s.AddParticipant(ctx, conv.ID, "ghost")
	nf := requireErrorAs[*registrystore.NotFoundError](t, err)
	assert.Equal(t, "user", nf.Resource)

	_, err = s.AddParticipant(ctx, uuid.New(), "bob")
	nf = requireErrorAs[*registrystore.NotFoundError](t, err)
	assert.Equal(t, "conversation", nf.Resource)

	err = s.RemoveParticipant(ctx, conv.ID, "carol")
	requireErrorAs[*registrystore.ConflictError](t, err)

	require.NoError(t, s.RemoveParticipant(ctx, conv.ID, "bob"))
	ok, err = s.IsParticipant(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.RemoveParticipant(ctx, conv.ID, "alice")
	ce := requireErrorAs[*registrystore.ConflictError](t, err)
	assert.Contains(t, ce.Message, "last participant")
}

func testReplaceParticipants(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob", "carol")
	conv, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	got, err := s.ReplaceParticipants(ctx, conv.ID, []string{"alice", "carol"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, ParticipantIDs(got))

	_, err = s.ReplaceParticipants(ctx, conv.ID, nil)
	requireErrorAs[*registrystore.ValidationError](t, err)

	_, err = s.ReplaceParticipants(ctx, conv.ID, []string{"alice", "ghost"})
	requireErrorAs[*registrystore.NotFoundError](t, err)

	got, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, ParticipantIDs(got))
}

func testDeleteConversation(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob")
	conv, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	msg, err := s.CreateMessage(ctx, conv.ID, "alice", "hello")
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))

	_, err = s.GetConversation(ctx, conv.ID)
	requireErrorAs[*registrystore.NotFoundError](t, err)
	_, err = s.GetMessage(ctx, msg.ID)
	requireErrorAs[*registrystore.NotFoundError](t, err)
	ok, err := s.IsParticipant(ctx, conv.ID, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.DeleteConversation(ctx, conv.ID)
	requireErrorAs[*registrystore.NotFoundError](t, err)
}

func testMessages(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob")
	conv, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	msg, err := s.CreateMessage(ctx, conv.ID, "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, "alice", msg.Sender.ID)
	assert.Equal(t, "hi", msg.MessageBody)
	assert.False(t, msg.IsRead)
	assert.False(t, msg.SentAt.IsZero())

	_, err = s.CreateMessage(ctx, conv.ID, "alice", "   ")
	requireErrorAs[*registrystore.ValidationError](t, err)

	_, err = s.CreateMessage(ctx, uuid.New(), "alice", "hi")
	requireErrorAs[*registrystore.NotFoundError](t, err)

	time.Sleep(2 * time.Millisecond)
	updated, err := s.UpdateMessageBody(ctx, msg.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.MessageBody)
	assert.True(t, updated.SentAt.Equal(msg.SentAt))
	assert.True(t, updated.UpdatedAt.After(msg.UpdatedAt))

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.MessageCount)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, msg.ID, got.LastMessage.ID)

	require.NoError(t, s.DeleteMessage(ctx, msg.ID))
	_, err = s.GetMessage(ctx, msg.ID)
	requireErrorAs[*registrystore.NotFoundError](t, err)
	err = s.DeleteMessage(ctx, msg.ID)
	requireErrorAs[*registrystore.NotFoundError](t, err)
	_, err = s.UpdateMessageBody(ctx, msg.ID, "again")
	requireErrorAs[*registrystore.NotFoundError](t, err)
}

func testCreateMessageRequiresParticipant(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "carol")
	conv, err := s.CreateConversation(ctx, []string{"alice"})
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, conv.ID, "carol", "let me in")
	ve := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "sender", ve.Field)

	_, count, err := s.ListMessages(ctx, registrystore.MessageScope{ConversationID: &conv.ID}, registrystore.ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testMarkMessageRead(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob")
	conv, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	msg, err := s.CreateMessage(ctx, conv.ID, "alice", "hi")
	require.NoError(t, err)

	got, changed, err := s.MarkMessageRead(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, got.IsRead)

	got, changed, err = s.MarkMessageRead(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, got.IsRead)

	_, _, err = s.MarkMessageRead(ctx, uuid.New())
	requireErrorAs[*registrystore.NotFoundError](t, err)
}

func testListMessagesScopes(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob", "carol")
	ab, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	bc, err := s.CreateConversation(ctx, []string{"bob", "carol"})
	require.NoError(t, err)

	m1, err := s.CreateMessage(ctx, ab.ID, "alice", "a->b")
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, ab.ID, "bob", "b->a")
	require.NoError(t, err)
	m3, err := s.CreateMessage(ctx, bc.ID, "carol", "c->b")
	require.NoError(t, err)

	all := registrystore.ListQuery{Limit: 50}

	_, count, err := s.ListMessages(ctx, registrystore.MessageScope{VisibleTo: "alice"}, all)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, count, err = s.ListMessages(ctx, registrystore.MessageScope{VisibleTo: "bob"}, all)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	sent, count, err := s.ListMessages(ctx, registrystore.MessageScope{VisibleTo: "alice", SenderID: "alice"}, all)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, m1.ID, sent[0].ID)

	unread, count, err := s.ListMessages(ctx, registrystore.MessageScope{VisibleTo: "bob", UnreadFor: "bob"}, all)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	for _, m := range unread {
		assert.NotEqual(t, "bob", m.Sender.ID)
	}

	_, _, err = s.MarkMessageRead(ctx, m3.ID)
	require.NoError(t, err)
	_, count, err = s.ListMessages(ctx, registrystore.MessageScope{VisibleTo: "bob", UnreadFor: "bob"}, all)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	inConv, count, err := s.ListMessages(ctx, registrystore.MessageScope{ConversationID: &bc.ID}, all)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, m3.ID, inConv[0].ID)
}

func testListMessagesFilters(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob", "al_ex")
	conv, err := s.CreateConversation(ctx, []string{"alice", "bob", "al_ex"})
	require.NoError(t, err)

	m1, err := s.CreateMessage(ctx, conv.ID, "alice", "Lunch at noon?")
	require.NoError(t, err)
	m2, err := s.CreateMessage(ctx, conv.ID, "bob", "100% yes")
	require.NoError(t, err)
	m3, err := s.CreateMessage(ctx, conv.ID, "al_ex", "count me in")
	require.NoError(t, err)
	_, _, err = s.MarkMessageRead(ctx, m2.ID)
	require.NoError(t, err)

	list := func(criteria ...registrystore.Criterion) []uuid.UUID {
		t.Helper()
		msgs, count, err := s.ListMessages(ctx, registrystore.MessageScope{VisibleTo: "alice"}, registrystore.ListQuery{
			Criteria: criteria,
			Ordering: []registrystore.OrderField{{Field: registrystore.FieldSentAt}},
			Limit:    50,
		})
		require.NoError(t, err)
		require.EqualValues(t, len(msgs), count)
		ids := make([]uuid.UUID, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		return ids
	}

	assert.ElementsMatch(t, []uuid.UUID{m1.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldMessageBody, Comparison: registrystore.IContains, Value: "LUNCH"},
	))
	assert.ElementsMatch(t, []uuid.UUID{m2.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldMessageBody, Comparison: registrystore.IContains, Value: "0%"},
	))
	// "_" must match literally, not as a wildcard.
	assert.ElementsMatch(t, []uuid.UUID{m3.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldSenderUsername, Comparison: registrystore.IContains, Value: "L_E"},
	))
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m3.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldSenderUsername, Comparison: registrystore.IContains, Value: "al"},
	))
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m3.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldIsRead, Comparison: registrystore.Exact, Value: false},
	))
	assert.ElementsMatch(t, []uuid.UUID{m2.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldSenderID, Comparison: registrystore.Exact, Value: "bob"},
		registrystore.Criterion{Field: registrystore.FieldIsRead, Comparison: registrystore.Exact, Value: true},
	))
	assert.Empty(t, list(
		registrystore.Criterion{Field: registrystore.FieldSenderID, Comparison: registrystore.Exact, Value: "bob"},
		registrystore.Criterion{Field: registrystore.FieldIsRead, Comparison: registrystore.Exact, Value: false},
	))
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m2.ID, m3.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldConversationID, Comparison: registrystore.Exact, Value: conv.ID},
	))

	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)
	assert.Empty(t, list(
		registrystore.Criterion{Field: registrystore.FieldSentAt, Comparison: registrystore.GTE, Value: future},
	))
	assert.Len(t, list(
		registrystore.Criterion{Field: registrystore.FieldSentAt, Comparison: registrystore.GTE, Value: past},
		registrystore.Criterion{Field: registrystore.FieldSentAt, Comparison: registrystore.LTE, Value: future},
	), 3)
	assert.ElementsMatch(t, []uuid.UUID{m1.ID}, list(
		registrystore.Criterion{Field: registrystore.FieldSentAt, Comparison: registrystore.LTE, Value: m1.SentAt},
	))
}

func testListMessagesPaging(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob")
	conv, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		m, err := s.CreateMessage(ctx, conv.ID, "alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		ids = append(ids, m.ID)
		time.Sleep(2 * time.Millisecond)
	}
	scope := registrystore.MessageScope{VisibleTo: "bob"}

	page, count, err := s.ListMessages(ctx, scope, registrystore.ListQuery{
		Ordering: []registrystore.OrderField{{Field: registrystore.FieldSentAt}},
		Limit:    2,
		Offset:   2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, _, err = s.ListMessages(ctx, scope, registrystore.ListQuery{
		Ordering: []registrystore.OrderField{{Field: registrystore.FieldSentAt, Desc: true}},
		Limit:    1,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[4], page[0].ID)

	page, count, err = s.ListMessages(ctx, scope, registrystore.ListQuery{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
	assert.Empty(t, page)
}

func testListConversations(t *testing.T, s registrystore.MessagingStore, ctx context.Context) {
	seedUsers(t, s, ctx, "alice", "bob", "carol")
	first, err := s.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.CreateConversation(ctx, []string{"alice", "carol"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.CreateConversation(ctx, []string{"bob", "carol"})
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, second.ID, "carol", "one")
	require.NoError(t, err)
	last, err := s.CreateMessage(ctx, second.ID, "alice", "two")
	require.NoError(t, err)

	convs, count, err := s.ListConversations(ctx, "alice", registrystore.ListQuery{
		Ordering: []registrystore.OrderField{{Field: registrystore.FieldCreatedAt, Desc: true}},
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first.ID, convs[1].ID)
	assert.EqualValues(t, 2, convs[0].MessageCount)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, last.ID, convs[0].LastMessage.ID)
	assert.Nil(t, convs[1].LastMessage)

	convs, count, err = s.ListConversations(ctx, "alice", registrystore.ListQuery{
		Criteria: []registrystore.Criterion{{Field: registrystore.FieldParticipantUsername, Comparison: registrystore.IContains, Value: "CAR"}},
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.ElementsMatch(t, []string{"alice", "carol"}, ParticipantIDs(&convs[0]))

	_, count, err = s.ListConversations(ctx, "alice", registrystore.ListQuery{
		Criteria: []registrystore.Criterion{{Field: registrystore.FieldParticipantID, Comparison: registrystore.Exact, Value: "bob"}},
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, count, err = s.ListConversations(ctx, "alice", registrystore.ListQuery{
		Criteria: []registrystore.Criterion{{Field: registrystore.FieldCreatedAt, Comparison: registrystore.GTE, Value: second.CreatedAt}},
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

// ParticipantIDs returns the ids of the conversation's participants.
func ParticipantIDs(d *registrystore.ConversationDetail) []string {
	ids := make([]string, len(d.Participants))
	for i, p := range d.Participants {
		ids[i] = p.ID
	}
	return ids
}
