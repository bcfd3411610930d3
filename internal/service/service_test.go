package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/plugin/store/sqlite"
	"github.com/chirino/messaging-service/internal/plugin/store/storetest"
	"github.com/chirino/messaging-service/internal/policy"
	"github.com/chirino/messaging-service/internal/query"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = policy.Caller{UserID: "alice"}
	bob   = policy.Caller{UserID: "bob"}
	carol = policy.Caller{UserID: "carol"}
	anon  = policy.Caller{}
)

type fixture struct {
	ctx   context.Context
	store registrystore.MessagingStore
	svc   *service.Service
}

func newFixture(t *testing.T, engines ...string) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DatastoreMigrateAtStart = true
	cfg.DBURL = filepath.Join(t.TempDir(), "service.db")
	ctx := config.WithContext(context.Background(), &cfg)

	_ = sqlite.ForceImport
	require.NoError(t, registrymigrate.RunAll(ctx))
	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	st, err := loader(ctx)
	require.NoError(t, err)

	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		_, err := st.CreateUser(ctx, model.User{ID: id, Username: id, Email: id + "@example.com"})
		require.NoError(t, err)
	}

	var authz policy.Authorizer = policy.NewRuleEngine(st)
	if len(engines) > 0 && engines[0] == config.PolicyKindRego {
		authz, err = policy.NewRegoEngine(ctx, st, "")
		require.NoError(t, err)
	}
	return &fixture{ctx: ctx, store: st, svc: service.New(st, authz)}
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.True(t, errors.As(err, &target), "expected %T, got %v", target, err)
	return target
}

func params(raw string) service.ListRequest {
	v, _ := url.ParseQuery(raw)
	return service.ListRequest{Params: v}
}

func (f *fixture) conversation(t *testing.T, caller policy.Caller, others ...string) uuid.UUID {
	t.Helper()
	conv, err := f.svc.CreateConversation(f.ctx, caller, others)
	require.NoError(t, err)
	return conv.ID
}

func TestCreateConversationAddsCallerAndDedupes(t *testing.T) {
	f := newFixture(t)
	conv, err := f.svc.CreateConversation(f.ctx, alice, []string{"bob", " bob ", "alice", ""})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, storetest.ParticipantIDs(conv))
	assert.Nil(t, conv.LastMessage)
	assert.Zero(t, conv.MessageCount)

	_, err = f.svc.CreateConversation(f.ctx, alice, []string{"zed"})
	nf := requireErrorAs[*registrystore.NotFoundError](t, err)
	assert.Equal(t, "user", nf.Resource)

	_, err = f.svc.CreateConversation(f.ctx, anon, []string{"bob"})
	requireErrorAs[*registrystore.UnauthenticatedError](t, err)
}

func TestConversationAccess(t *testing.T) {
	for _, engine := range []string{config.PolicyKindRules, config.PolicyKindRego} {
		t.Run(engine, func(t *testing.T) {
			f := newFixture(t, engine)
			id := f.conversation(t, alice, "bob")

			_, err := f.svc.GetConversation(f.ctx, bob, id)
			require.NoError(t, err)

			_, err = f.svc.GetConversation(f.ctx, carol, id)
			requireErrorAs[*registrystore.ForbiddenError](t, err)

			_, err = f.svc.GetConversation(f.ctx, alice, uuid.New())
			requireErrorAs[*registrystore.NotFoundError](t, err)

			// Unauthenticated is reported before existence.
			_, err = f.svc.GetConversation(f.ctx, anon, uuid.New())
			requireErrorAs[*registrystore.UnauthenticatedError](t, err)

			err = f.svc.DeleteConversation(f.ctx, carol, id)
			requireErrorAs[*registrystore.ForbiddenError](t, err)
		})
	}
}

func TestParticipants(t *testing.T) {
	f := newFixture(t)
	id := f.conversation(t, alice)

	_, err := f.svc.AddParticipant(f.ctx, alice, id, " ")
	v := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "user_id", v.Field)

	_, err = f.svc.AddParticipant(f.ctx, alice, id, "zed")
	requireErrorAs[*registrystore.NotFoundError](t, err)

	_, err = f.svc.AddParticipant(f.ctx, alice, uuid.New(), "bob")
	requireErrorAs[*registrystore.NotFoundError](t, err)

	_, err = f.svc.AddParticipant(f.ctx, carol, id, "carol")
	requireErrorAs[*registrystore.ForbiddenError](t, err)

	user, err := f.svc.AddParticipant(f.ctx, alice, id, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	_, err = f.svc.AddParticipant(f.ctx, bob, id, "bob")
	requireErrorAs[*registrystore.ConflictError](t, err)

	// Membership changes take effect on the next check.
	_, err = f.svc.GetConversation(f.ctx, bob, id)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveParticipant(f.ctx, alice, id, "bob"))
	_, err = f.svc.GetConversation(f.ctx, bob, id)
	requireErrorAs[*registrystore.ForbiddenError](t, err)

	err = f.svc.RemoveParticipant(f.ctx, alice, id, "carol")
	requireErrorAs[*registrystore.ConflictError](t, err)

	err = f.svc.RemoveParticipant(f.ctx, alice, id, "alice")
	requireErrorAs[*registrystore.ConflictError](t, err)
}

func TestUpdateConversation(t *testing.T) {
	f := newFixture(t)
	id := f.conversation(t, alice, "bob")

	_, err := f.svc.UpdateConversation(f.ctx, alice, id, []string{" ", ""})
	v := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "participant_ids", v.Field)

	conv, err := f.svc.UpdateConversation(f.ctx, alice, id, []string{"alice", "carol", "carol"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, storetest.ParticipantIDs(conv))
	assert.False(t, conv.UpdatedAt.Before(conv.CreatedAt))

	_, err = f.svc.UpdateConversation(f.ctx, bob, id, []string{"bob"})
	requireErrorAs[*registrystore.ForbiddenError](t, err)
}

func TestMessageLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.conversation(t, alice, "bob")

	_, err := f.svc.CreateMessage(f.ctx, alice, id, "   ")
	v := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "message_body", v.Field)

	_, err = f.svc.CreateMessage(f.ctx, alice, uuid.New(), "hi")
	requireErrorAs[*registrystore.NotFoundError](t, err)

	_, err = f.svc.CreateMessage(f.ctx, carol, id, "let me in")
	requireErrorAs[*registrystore.ForbiddenError](t, err)

	msg, err := f.svc.CreateMessage(f.ctx, alice, id, "hello bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Sender.ID)
	assert.Equal(t, id, msg.ConversationID)
	assert.False(t, msg.IsRead)

	_, err = f.svc.GetMessage(f.ctx, carol, msg.ID)
	requireErrorAs[*registrystore.ForbiddenError](t, err)

	_, err = f.svc.UpdateMessage(f.ctx, bob, msg.ID, "edited by bob")
	forbidden := requireErrorAs[*registrystore.ForbiddenError](t, err)
	assert.Contains(t, forbidden.Message, "sender")

	updated, err := f.svc.UpdateMessage(f.ctx, alice, msg.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, "hello again", updated.MessageBody)

	read, changed, err := f.svc.MarkMessageRead(f.ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, read.IsRead)

	_, changed, err = f.svc.MarkMessageRead(f.ctx, alice, msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = f.svc.MarkMessageRead(f.ctx, carol, msg.ID)
	requireErrorAs[*registrystore.ForbiddenError](t, err)

	err = f.svc.DeleteMessage(f.ctx, bob, msg.ID)
	requireErrorAs[*registrystore.ForbiddenError](t, err)
	require.NoError(t, f.svc.DeleteMessage(f.ctx, alice, msg.ID))
	_, err = f.svc.GetMessage(f.ctx, alice, msg.ID)
	requireErrorAs[*registrystore.NotFoundError](t, err)
}

func TestMessageListings(t *testing.T) {
	f := newFixture(t)
	ab := f.conversation(t, alice, "bob")
	cd := f.conversation(t, carol, "dave")

	_, err := f.svc.CreateMessage(f.ctx, alice, ab, "from alice")
	require.NoError(t, err)
	fromBob, err := f.svc.CreateMessage(f.ctx, bob, ab, "from bob")
	require.NoError(t, err)
	_, err = f.svc.CreateMessage(f.ctx, carol, cd, "private")
	require.NoError(t, err)

	all, err := f.svc.ListMessages(f.ctx, alice, params(""))
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Count)

	sent, err := f.svc.ListSentMessages(f.ctx, alice, params(""))
	require.NoError(t, err)
	require.Len(t, sent.Results, 1)
	assert.Equal(t, "from alice", sent.Results[0].MessageBody)

	unread, err := f.svc.ListUnreadMessages(f.ctx, alice, params(""))
	require.NoError(t, err)
	require.Len(t, unread.Results, 1)
	assert.Equal(t, fromBob.ID, unread.Results[0].ID)

	_, _, err = f.svc.MarkMessageRead(f.ctx, alice, fromBob.ID)
	require.NoError(t, err)
	unread, err = f.svc.ListUnreadMessages(f.ctx, alice, params(""))
	require.NoError(t, err)
	assert.Empty(t, unread.Results)

	filtered, err := f.svc.ListMessages(f.ctx, alice, params("sender_username=BO"))
	require.NoError(t, err)
	require.Len(t, filtered.Results, 1)
	assert.Equal(t, "bob", filtered.Results[0].Sender.Username)

	_, err = f.svc.ListMessages(f.ctx, alice, params("is_read=maybe"))
	v := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "is_read", v.Field)

	inConv, err := f.svc.ListConversationMessages(f.ctx, bob, ab, params("ordering=-sent_at"))
	require.NoError(t, err)
	require.Len(t, inConv.Results, 2)
	assert.Equal(t, "from bob", inConv.Results[0].MessageBody)

	_, err = f.svc.ListConversationMessages(f.ctx, alice, cd, params(""))
	requireErrorAs[*registrystore.ForbiddenError](t, err)

	_, err = f.svc.ListConversationMessages(f.ctx, alice, uuid.New(), params(""))
	requireErrorAs[*registrystore.NotFoundError](t, err)

	_, err = f.svc.ListMessages(f.ctx, anon, params(""))
	requireErrorAs[*registrystore.UnauthenticatedError](t, err)
}

func TestListConversationsPaging(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.conversation(t, alice, "bob")
	}
	f.conversation(t, carol)

	base, err := url.Parse("http://localhost/api/conversations?page_size=2")
	require.NoError(t, err)
	req := params("page_size=2")
	req.BaseURL = base

	page, err := f.svc.ListConversations(f.ctx, alice, req)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Count)
	assert.EqualValues(t, 2, page.TotalPages)
	assert.Len(t, page.Results, 2)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Nil(t, page.Previous)
	assert.True(t, page.Results[0].CreatedAt.After(page.Results[1].CreatedAt) ||
		page.Results[0].CreatedAt.Equal(page.Results[1].CreatedAt))

	page, err = f.svc.ListConversations(f.ctx, carol, params(""))
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Count)

	_, err = f.svc.ListConversations(f.ctx, alice, params("page=0"))
	v := requireErrorAs[*registrystore.ValidationError](t, err)
	assert.Equal(t, "page", v.Field)
}

func TestOversizedPagesAreClamped(t *testing.T) {
	f := newFixture(t)
	ab := f.conversation(t, alice, "bob")
	for i := 0; i < 105; i++ {
		_, err := f.store.CreateMessage(f.ctx, ab, "alice", fmt.Sprintf("msg %03d", i))
		require.NoError(t, err)
	}

	q, err := query.Messages.Parse(url.Values{"page_size": {"1000"}})
	require.NoError(t, err)
	assert.Equal(t, 100, q.Page.Size)

	page, err := f.svc.ListMessages(f.ctx, bob, params("page_size=1000"))
	require.NoError(t, err)
	assert.EqualValues(t, 105, page.Count)
	assert.Equal(t, 100, page.PageSize)
	assert.EqualValues(t, 2, page.TotalPages)
	assert.Len(t, page.Results, 100)

	page, err = f.svc.ListMessages(f.ctx, bob, params("page_size=1000&page=2"))
	require.NoError(t, err)
	assert.Len(t, page.Results, 5)

	for i := 0; i < 52; i++ {
		_, err := f.store.CreateConversation(f.ctx, []string{"carol", "dave"})
		require.NoError(t, err)
	}
	convs, err := f.svc.ListConversations(f.ctx, carol, params("page_size=1000"))
	require.NoError(t, err)
	assert.EqualValues(t, 52, convs.Count)
	assert.Equal(t, 50, convs.PageSize)
	assert.EqualValues(t, 2, convs.TotalPages)
	assert.Len(t, convs.Results, 50)
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	page, err := f.svc.ListUsers(f.ctx, alice, params("username=A"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Count) // alice, carol, dave
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, "alice", page.Results[0].Username)

	user, err := f.svc.GetUser(f.ctx, bob, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", user.Email)

	_, err = f.svc.GetUser(f.ctx, bob, "zed")
	requireErrorAs[*registrystore.NotFoundError](t, err)

	_, err = f.svc.ListUsers(f.ctx, anon, params(""))
	requireErrorAs[*registrystore.UnauthenticatedError](t, err)
}
