package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/open-policy-agent/opa/rego"
)

const defaultPolicyAssertionsRego = `
package messaging.tests

import future.keywords.if

test_participant_reads_conversation if {
	data.messaging.authz.allow with input as {
		"authenticated": true,
		"collection": false,
		"is_participant": true,
		"is_sender": false,
		"operation": "read",
		"kind": "conversation"
	}
}

test_outsider_denied if {
	not data.messaging.authz.allow with input as {
		"authenticated": true,
		"collection": false,
		"is_participant": false,
		"is_sender": false,
		"operation": "read",
		"kind": "message"
	}
}

test_only_sender_updates if {
	not data.messaging.authz.allow with input as {
		"authenticated": true,
		"collection": false,
		"is_participant": true,
		"is_sender": false,
		"operation": "update",
		"kind": "message"
	}
}

test_anonymous_denied if {
	not data.messaging.authz.allow with input as {
		"authenticated": false,
		"collection": true,
		"is_participant": false,
		"is_sender": false,
		"operation": "create",
		"kind": "conversation"
	}
}

test_unknown_operation_denied if {
	not data.messaging.authz.allow with input as {
		"authenticated": true,
		"collection": false,
		"is_participant": true,
		"is_sender": true,
		"operation": "mark_read",
		"kind": "conversation"
	}
}
`

func TestDefaultPolicyRegoAssertions(t *testing.T) {
	modules := map[string]string{
		"authz.rego": defaultAuthzRego,
		"tests.rego": defaultPolicyAssertionsRego,
	}
	testRules := []string{
		"test_participant_reads_conversation",
		"test_outsider_denied",
		"test_only_sender_updates",
		"test_anonymous_denied",
		"test_unknown_operation_denied",
	}

	for _, rule := range testRules {
		t.Run(rule, func(t *testing.T) {
			query := fmt.Sprintf("data.messaging.tests.%s", rule)
			if !evalRegoBoolean(t, modules, query) {
				t.Fatalf("rego assertion failed: %s", query)
			}
		})
	}
}

func evalRegoBoolean(t *testing.T, modules map[string]string, query string) bool {
	t.Helper()
	opts := []func(*rego.Rego){rego.Query(query)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	results, err := rego.New(opts...).Eval(context.Background())
	if err != nil {
		t.Fatalf("eval %s: %v", query, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		t.Fatalf("eval %s: no result", query)
	}
	v, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		t.Fatalf("eval %s: expected bool, got %T", query, results[0].Expressions[0].Value)
	}
	return v
}
