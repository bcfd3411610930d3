package service

import (
	"context"

	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/policy"
	"github.com/chirino/messaging-service/internal/query"
)

// ListUsers lists registered users, optionally filtered by username.
func (s *Service) ListUsers(ctx context.Context, caller policy.Caller, req ListRequest) (query.Page[model.User], error) {
	var page query.Page[model.User]
	if err := s.authorize(ctx, caller, policy.OpList, policy.Collection(policy.TargetUser)); err != nil {
		return page, err
	}
	q, err := shape(query.Users, req)
	if err != nil {
		return page, err
	}
	results, count, err := s.store.ListUsers(ctx, q.List())
	if err != nil {
		return page, err
	}
	return query.NewPage(results, count, q.Page, req.BaseURL), nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, caller policy.Caller, id string) (*model.User, error) {
	if err := s.authorize(ctx, caller, policy.OpRead, policy.Collection(policy.TargetUser)); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}
