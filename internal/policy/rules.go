package policy

import "context"

// Rule is the requirement an operation places on the caller.
type Rule int

const (
	RuleAuthenticated Rule = iota
	RuleParticipant
	RuleSender
)

type ruleKey struct {
	kind TargetKind
	op   Operation
}

// Rules is the access table. Pairs missing from it are denied.
var Rules = map[ruleKey]Rule{
	{TargetConversation, OpRead}:              RuleParticipant,
	{TargetConversation, OpList}:              RuleParticipant,
	{TargetConversation, OpCreate}:            RuleAuthenticated,
	{TargetConversation, OpUpdate}:            RuleParticipant,
	{TargetConversation, OpDelete}:            RuleParticipant,
	{TargetConversation, OpAddParticipant}:    RuleParticipant,
	{TargetConversation, OpRemoveParticipant}: RuleParticipant,

	{TargetMessage, OpRead}:     RuleParticipant,
	{TargetMessage, OpList}:     RuleParticipant,
	{TargetMessage, OpCreate}:   RuleParticipant,
	{TargetMessage, OpUpdate}:   RuleSender,
	{TargetMessage, OpDelete}:   RuleSender,
	{TargetMessage, OpMarkRead}: RuleParticipant,

	{TargetUser, OpRead}: RuleAuthenticated,
	{TargetUser, OpList}: RuleAuthenticated,
}

// RuleEngine evaluates the Rules table natively.
type RuleEngine struct {
	members MembershipReader
}

// NewRuleEngine creates a RuleEngine reading membership from members.
func NewRuleEngine(members MembershipReader) *RuleEngine {
	return &RuleEngine{members: members}
}

func (e *RuleEngine) Authorize(ctx context.Context, caller Caller, op Operation, target Target) error {
	if !caller.Authenticated() {
		return unauthenticated()
	}
	rule, ok := Rules[ruleKey{target.Kind, op}]
	if !ok {
		return forbidden(op, target)
	}
	facts, err := gatherFacts(ctx, e.members, caller, op, target)
	if err != nil {
		return err
	}
	if evaluate(rule, facts) {
		return nil
	}
	return forbidden(op, target)
}

func evaluate(rule Rule, f Facts) bool {
	switch rule {
	case RuleAuthenticated:
		return f.Authenticated
	case RuleParticipant:
		// Listings over a whole collection are scoped to the caller by the store.
		if f.Collection {
			return f.Operation == string(OpList)
		}
		return f.IsParticipant
	case RuleSender:
		return !f.Collection && f.IsSender
	default:
		return false
	}
}
