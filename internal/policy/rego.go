package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/open-policy-agent/opa/rego"
)

const authzQuery = "data.messaging.authz.allow"

const defaultAuthzRego = `
package messaging.authz

import future.keywords.if
import future.keywords.in

default allow = false

authenticated_ops := {
    "conversation": {"create"},
    "user": {"read", "list"},
}

participant_ops := {
    "conversation": {"read", "list", "update", "delete", "add_participant", "remove_participant"},
    "message": {"read", "list", "create", "mark_read"},
}

sender_ops := {
    "message": {"update", "delete"},
}

allow if {
    input.authenticated
    input.operation in authenticated_ops[input.kind]
}

# Collection listings are scoped to the caller by the store.
allow if {
    input.authenticated
    input.collection
    input.operation == "list"
    input.operation in participant_ops[input.kind]
}

allow if {
    input.authenticated
    not input.collection
    input.operation in participant_ops[input.kind]
    input.is_participant
}

allow if {
    input.authenticated
    not input.collection
    input.operation in sender_ops[input.kind]
    input.is_sender
}
`

// RegoEngine evaluates access decisions with an OPA Rego policy. Facts are
// computed per check and passed as input.
type RegoEngine struct {
	members MembershipReader

	mu    sync.RWMutex
	authz *rego.PreparedEvalQuery
	src   string
}

// NewRegoEngine creates a RegoEngine. If policyDir is non-empty, authz.rego
// is loaded from it; otherwise the built-in policy is used.
func NewRegoEngine(ctx context.Context, members MembershipReader, policyDir string) (*RegoEngine, error) {
	e := &RegoEngine{members: members}
	if err := e.Reload(ctx, policyDir); err != nil {
		return nil, err
	}
	return e, nil
}

func regoSource(policyDir, filename, fallback string) string {
	if policyDir == "" {
		return fallback
	}
	data, err := os.ReadFile(filepath.Join(policyDir, filename))
	if err != nil {
		log.Warn("Policy file not found, using built-in default", "file", filename, "err", err)
		return fallback
	}
	return string(data)
}

// Reload recompiles the policy from policyDir. Thread-safe; on error the
// previously loaded policy stays active.
func (e *RegoEngine) Reload(ctx context.Context, policyDir string) error {
	src := regoSource(policyDir, "authz.rego", defaultAuthzRego)
	pq, err := rego.New(
		rego.Query(authzQuery),
		rego.Module("authz.rego", src),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("policy: compile authz policy: %w", err)
	}
	e.mu.Lock()
	e.authz = &pq
	e.src = src
	e.mu.Unlock()
	return nil
}

// Source returns the active policy text.
func (e *RegoEngine) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.src
}

func (e *RegoEngine) Authorize(ctx context.Context, caller Caller, op Operation, target Target) error {
	if !caller.Authenticated() {
		return unauthenticated()
	}
	facts, err := gatherFacts(ctx, e.members, caller, op, target)
	if err != nil {
		return err
	}

	e.mu.RLock()
	q := *e.authz
	e.mu.RUnlock()

	input := map[string]interface{}{
		"authenticated":  facts.Authenticated,
		"collection":     facts.Collection,
		"is_participant": facts.IsParticipant,
		"is_sender":      facts.IsSender,
		"operation":      facts.Operation,
		"kind":           facts.Kind,
	}
	results, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("policy: authz eval: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return forbidden(op, target)
	}
	if allow, _ := results[0].Expressions[0].Value.(bool); allow {
		return nil
	}
	return forbidden(op, target)
}
