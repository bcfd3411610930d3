// Package mcpserver exposes the messaging operations as Model Context Protocol
// tools served over stdio. Every tool acts as one fixed user and goes through
// the same service and access policy as the HTTP API.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/cmd/serve"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/policy"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/service"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"

	_ "github.com/chirino/messaging-service/internal/plugin/cache/noop"
	_ "github.com/chirino/messaging-service/internal/plugin/store/postgres"
	_ "github.com/chirino/messaging-service/internal/plugin/store/sqlite"
)

const version = "0.1.0"

// Command returns the mcp sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	cfg.CacheType = "none"
	var user string
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve messaging tools over the Model Context Protocol (stdio)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Sources:     cli.EnvVars("MESSAGING_SERVICE_MCP_USER"),
				Destination: &user,
				Usage:       "User id every tool call acts as",
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "db-url",
				Sources:     cli.EnvVars("MESSAGING_SERVICE_DB_URL"),
				Destination: &cfg.DBURL,
				Usage:       "Database connection URL",
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "db-kind",
				Sources:     cli.EnvVars("MESSAGING_SERVICE_DB_KIND"),
				Destination: &cfg.DatastoreType,
				Value:       cfg.DatastoreType,
				Usage:       "Store backend (" + strings.Join(registrystore.Names(), "|") + ")",
			},
			&cli.StringFlag{
				Name:        "policy-kind",
				Sources:     cli.EnvVars("MESSAGING_SERVICE_POLICY_KIND"),
				Destination: &cfg.PolicyKind,
				Value:       cfg.PolicyKind,
				Usage:       "Access policy engine (" + config.PolicyKindRules + "|" + config.PolicyKindRego + ")",
			},
			&cli.StringFlag{
				Name:        "policy-dir",
				Sources:     cli.EnvVars("MESSAGING_SERVICE_POLICY_DIR"),
				Destination: &cfg.PolicyDir,
				Usage:       "Directory holding an authz.rego that replaces the built-in policy",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx = config.WithContext(ctx, &cfg)
			deps, err := serve.InitDependencies(ctx, &cfg)
			if err != nil {
				return err
			}
			if err := deps.Store.EnsureUser(ctx, model.User{ID: user}); err != nil {
				return err
			}
			log.Info("Serving MCP tools on stdio", "user", user)
			return server.ServeStdio(NewServer(deps.Service, policy.Caller{UserID: user}))
		},
	}
}

// NewServer builds an MCP server whose tools act as caller.
func NewServer(svc *service.Service, caller policy.Caller) *server.MCPServer {
	s := server.NewMCPServer("messaging-service", version, server.WithToolCapabilities(false))
	for _, t := range Tools(svc, caller) {
		s.AddTool(t.Definition, t.Handler)
	}
	return s
}

// Tool pairs a tool definition with its handler.
type Tool struct {
	Definition mcp.Tool
	Handler    server.ToolHandlerFunc
}

var queryArg = mcp.WithString("query",
	mcp.Description("Optional URL query string of filters, ordering and paging, e.g. \"is_read=false&page=2\""))

// Tools returns the messaging tools bound to caller.
func Tools(svc *service.Service, caller policy.Caller) []Tool {
	h := &handlers{svc: svc, caller: caller}
	return []Tool{
		{
			Definition: mcp.NewTool("list_conversations",
				mcp.WithDescription("List conversations you participate in"),
				queryArg,
			),
			Handler: h.listConversations,
		},
		{
			Definition: mcp.NewTool("create_conversation",
				mcp.WithDescription("Start a conversation with other users; you are always a participant"),
				mcp.WithString("participant_ids", mcp.Required(), mcp.Description("Comma-separated user ids")),
			),
			Handler: h.createConversation,
		},
		{
			Definition: mcp.NewTool("get_conversation",
				mcp.WithDescription("Show one conversation with its participants and latest message"),
				mcp.WithString("conversation_id", mcp.Required()),
			),
			Handler: h.getConversation,
		},
		{
			Definition: mcp.NewTool("add_participant",
				mcp.WithDescription("Add a user to a conversation"),
				mcp.WithString("conversation_id", mcp.Required()),
				mcp.WithString("user_id", mcp.Required()),
			),
			Handler: h.addParticipant,
		},
		{
			Definition: mcp.NewTool("remove_participant",
				mcp.WithDescription("Remove a user from a conversation"),
				mcp.WithString("conversation_id", mcp.Required()),
				mcp.WithString("user_id", mcp.Required()),
			),
			Handler: h.removeParticipant,
		},
		{
			Definition: mcp.NewTool("list_messages",
				mcp.WithDescription("List messages you can see, optionally within one conversation"),
				mcp.WithString("conversation_id", mcp.Description("Restrict to this conversation")),
				queryArg,
			),
			Handler: h.listMessages,
		},
		{
			Definition: mcp.NewTool("list_unread_messages",
				mcp.WithDescription("List unread messages sent to you by others"),
				queryArg,
			),
			Handler: h.listUnread,
		},
		{
			Definition: mcp.NewTool("send_message",
				mcp.WithDescription("Send a message to a conversation"),
				mcp.WithString("conversation_id", mcp.Required()),
				mcp.WithString("message_body", mcp.Required()),
			),
			Handler: h.sendMessage,
		},
		{
			Definition: mcp.NewTool("mark_message_read",
				mcp.WithDescription("Mark a message as read"),
				mcp.WithString("message_id", mcp.Required()),
			),
			Handler: h.markRead,
		},
		{
			Definition: mcp.NewTool("list_users",
				mcp.WithDescription("List registered users"),
				queryArg,
			),
			Handler: h.listUsers,
		},
	}
}

type handlers struct {
	svc    *service.Service
	caller policy.Caller
}

func (h *handlers) listConversations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lr, err := listRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.ListConversations(ctx, h.caller, lr))
}

func (h *handlers) createConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("participant_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.CreateConversation(ctx, h.caller, strings.Split(raw, ",")))
}

func (h *handlers) getConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.GetConversation(ctx, h.caller, id))
}

func (h *handlers) addParticipant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.AddParticipant(ctx, h.caller, id, userID))
}

func (h *handlers) removeParticipant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.svc.RemoveParticipant(ctx, h.caller, id, userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed %s", userID)), nil
}

func (h *handlers) listMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lr, err := listRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if raw := req.GetString("conversation_id", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError("conversation_id must be a UUID"), nil
		}
		return respond(h.svc.ListConversationMessages(ctx, h.caller, id, lr))
	}
	return respond(h.svc.ListMessages(ctx, h.caller, lr))
}

func (h *handlers) listUnread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lr, err := listRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.ListUnreadMessages(ctx, h.caller, lr))
}

func (h *handlers) sendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("message_body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.CreateMessage(ctx, h.caller, id, body))
}

func (h *handlers) markRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, _, err := h.svc.MarkMessageRead(ctx, h.caller, id)
	return respond(msg, err)
}

func (h *handlers) listUsers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lr, err := listRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(h.svc.ListUsers(ctx, h.caller, lr))
}

func requireUUID(req mcp.CallToolRequest, name string) (uuid.UUID, error) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", name)
	}
	return id, nil
}

func listRequest(req mcp.CallToolRequest) (service.ListRequest, error) {
	params, err := url.ParseQuery(req.GetString("query", ""))
	if err != nil {
		return service.ListRequest{}, fmt.Errorf("query: %w", err)
	}
	return service.ListRequest{Params: params}, nil
}

// respond renders v as indented JSON, or err as a tool error the model can read.
func respond(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
