package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/chirino/messaging-service/internal/cmd/serve"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/plugin/store/storetest"
	"github.com/chirino/messaging-service/internal/policy"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctx   context.Context
	tools map[string]server.ToolHandlerFunc
}

func newHarness(t *testing.T, user string) (*harness, *serve.Dependencies) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(t.TempDir(), "mcp.db")
	cfg.CacheType = "none"
	ctx := config.WithContext(context.Background(), &cfg)

	deps, err := serve.InitDependencies(ctx, &cfg)
	require.NoError(t, err)
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, deps.Store.EnsureUser(ctx, model.User{ID: id}))
	}

	h := &harness{ctx: ctx, tools: map[string]server.ToolHandlerFunc{}}
	for _, tool := range Tools(deps.Service, policy.Caller{UserID: user}) {
		h.tools[tool.Definition.Name] = tool.Handler
	}
	return h, deps
}

func (h *harness) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	handler, ok := h.tools[name]
	require.True(t, ok, "unknown tool %s", name)
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := handler(h.ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, text(t, result))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &v))
	return v
}

func TestToolsAreRegistered(t *testing.T) {
	h, _ := newHarness(t, "alice")
	for _, name := range []string{
		"list_conversations", "create_conversation", "get_conversation",
		"add_participant", "remove_participant", "list_messages",
		"list_unread_messages", "send_message", "mark_message_read", "list_users",
	} {
		assert.Contains(t, h.tools, name)
	}
}

func TestConversationAndMessageTools(t *testing.T) {
	h, deps := newHarness(t, "alice")

	conv := decode[registrystore.ConversationDetail](t, h.call(t, "create_conversation", map[string]any{
		"participant_ids": "bob, bob",
	}))
	assert.ElementsMatch(t, []string{"alice", "bob"}, storetest.ParticipantIDs(&conv))

	msg := decode[registrystore.MessageDetail](t, h.call(t, "send_message", map[string]any{
		"conversation_id": conv.ID.String(),
		"message_body":    "hello bob",
	}))
	assert.Equal(t, "alice", msg.Sender.ID)

	page := decode[struct {
		Count int64 `json:"count"`
	}](t, h.call(t, "list_messages", map[string]any{
		"conversation_id": conv.ID.String(),
		"query":           "message_body=hello",
	}))
	assert.Equal(t, int64(1), page.Count)

	// Bob sees the message as unread and can mark it.
	bobTools := map[string]server.ToolHandlerFunc{}
	for _, tool := range Tools(deps.Service, policy.Caller{UserID: "bob"}) {
		bobTools[tool.Definition.Name] = tool.Handler
	}
	bob := &harness{ctx: h.ctx, tools: bobTools}
	unread := decode[struct {
		Count int64 `json:"count"`
	}](t, bob.call(t, "list_unread_messages", nil))
	assert.Equal(t, int64(1), unread.Count)

	read := decode[registrystore.MessageDetail](t, bob.call(t, "mark_message_read", map[string]any{
		"message_id": msg.ID.String(),
	}))
	assert.True(t, read.IsRead)
}

func TestToolErrorsAreReported(t *testing.T) {
	h, deps := newHarness(t, "carol")

	conv, err := deps.Service.CreateConversation(h.ctx, policy.Caller{UserID: "alice"}, []string{"bob"})
	require.NoError(t, err)

	t.Run("non participant is denied", func(t *testing.T) {
		result := h.call(t, "get_conversation", map[string]any{"conversation_id": conv.ID.String()})
		assert.True(t, result.IsError)
	})

	t.Run("bad uuid", func(t *testing.T) {
		result := h.call(t, "get_conversation", map[string]any{"conversation_id": "nope"})
		assert.True(t, result.IsError)
		assert.Contains(t, text(t, result), "conversation_id must be a UUID")
	})

	t.Run("missing argument", func(t *testing.T) {
		result := h.call(t, "send_message", map[string]any{"conversation_id": conv.ID.String()})
		assert.True(t, result.IsError)
	})

	t.Run("blank body", func(t *testing.T) {
		own, err := deps.Service.CreateConversation(h.ctx, policy.Caller{UserID: "carol"}, []string{"alice"})
		require.NoError(t, err)
		result := h.call(t, "send_message", map[string]any{
			"conversation_id": own.ID.String(),
			"message_body":    "   ",
		})
		assert.True(t, result.IsError)
		assert.Contains(t, text(t, result), "message_body")
	})
}
