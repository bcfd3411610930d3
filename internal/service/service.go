// Package service implements the conversation and message operations. Every
// operation authorizes the caller, shapes the listing request and then calls
// the store.
package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/policy"
	"github.com/chirino/messaging-service/internal/query"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/samber/lo"
)

// Service is the messaging application service shared by the HTTP routes and
// the MCP tools.
type Service struct {
	store registrystore.MessagingStore
	authz policy.Authorizer
}

// New creates a Service.
func New(store registrystore.MessagingStore, authz policy.Authorizer) *Service {
	return &Service{store: store, authz: authz}
}

// ListRequest carries the raw listing parameters and the absolute URL used to
// build next and previous links. A nil BaseURL leaves the links null.
type ListRequest struct {
	Params  url.Values
	BaseURL *url.URL
}

func (s *Service) authorize(ctx context.Context, caller policy.Caller, op policy.Operation, target policy.Target) error {
	err := s.authz.Authorize(ctx, caller, op, target)
	if err != nil {
		log.Debug("Access denied", "user", caller.UserID, "operation", op, "kind", target.Kind, "err", err)
	}
	return err
}

// requireCaller rejects unauthenticated callers before any object is loaded,
// so lookups never reveal whether an object exists.
func requireCaller(caller policy.Caller) error {
	if !caller.Authenticated() {
		return &registrystore.UnauthenticatedError{}
	}
	return nil
}

// normalizeIDs trims ids, drops blanks and removes duplicates keeping first occurrence.
func normalizeIDs(ids []string) []string {
	trimmed := lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })
	return lo.Uniq(lo.Compact(trimmed))
}

func shape(r query.Resource, req ListRequest) (query.Query, error) {
	params := req.Params
	if params == nil {
		params = url.Values{}
	}
	return r.Parse(params)
}
