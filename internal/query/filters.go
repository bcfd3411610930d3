package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
)

// Match is how a query parameter is compared against its field.
type Match int

const (
	MatchExact Match = iota
	MatchIContains
	MatchGTE
	MatchLTE
	// MatchRange accepts "from,to" or the <param>_after / <param>_before pair.
	MatchRange
)

// Kind is the type a parameter value is parsed into.
type Kind int

const (
	KindString Kind = iota
	KindUUID
	KindBool
	KindTime
)

// Filter maps one query parameter to a field and comparison.
type Filter struct {
	Param string
	Field store.Field
	Match Match
	Kind  Kind
}

// MessageFilters are the filter parameters accepted by message listings.
var MessageFilters = []Filter{
	{Param: "sender_username", Field: store.FieldSenderUsername, Match: MatchIContains, Kind: KindString},
	{Param: "sender_id", Field: store.FieldSenderID, Match: MatchExact, Kind: KindString},
	{Param: "conversation_id", Field: store.FieldConversationID, Match: MatchExact, Kind: KindUUID},
	{Param: "sent_at_after", Field: store.FieldSentAt, Match: MatchGTE, Kind: KindTime},
	{Param: "sent_at_before", Field: store.FieldSentAt, Match: MatchLTE, Kind: KindTime},
	{Param: "sent_at_range", Field: store.FieldSentAt, Match: MatchRange, Kind: KindTime},
	{Param: "message_body", Field: store.FieldMessageBody, Match: MatchIContains, Kind: KindString},
	{Param: "is_read", Field: store.FieldIsRead, Match: MatchExact, Kind: KindBool},
}

// ConversationFilters are the filter parameters accepted by conversation listings.
var ConversationFilters = []Filter{
	{Param: "participant_username", Field: store.FieldParticipantUsername, Match: MatchIContains, Kind: KindString},
	{Param: "participant_id", Field: store.FieldParticipantID, Match: MatchExact, Kind: KindString},
	{Param: "created_at_after", Field: store.FieldCreatedAt, Match: MatchGTE, Kind: KindTime},
	{Param: "created_at_before", Field: store.FieldCreatedAt, Match: MatchLTE, Kind: KindTime},
	{Param: "created_at_range", Field: store.FieldCreatedAt, Match: MatchRange, Kind: KindTime},
	{Param: "updated_at_after", Field: store.FieldUpdatedAt, Match: MatchGTE, Kind: KindTime},
	{Param: "updated_at_before", Field: store.FieldUpdatedAt, Match: MatchLTE, Kind: KindTime},
}

// UserFilters are the filter parameters accepted by user listings.
var UserFilters = []Filter{
	{Param: "username", Field: store.FieldUsername, Match: MatchIContains, Kind: KindString},
}

const (
	rangeAfterSuffix  = "_after"
	rangeBeforeSuffix = "_before"
)

// ParseCriteria turns the recognised parameters in values into criteria.
// Unrecognised parameters are ignored. Empty values are treated as absent.
func ParseCriteria(values url.Values, filters []Filter) ([]store.Criterion, error) {
	var criteria []store.Criterion
	for _, f := range filters {
		if f.Match == MatchRange {
			c, err := parseRange(values, f)
			if err != nil {
				return nil, err
			}
			criteria = append(criteria, c...)
			continue
		}
		raw := strings.TrimSpace(values.Get(f.Param))
		if raw == "" {
			continue
		}
		var cmp store.Comparison
		switch f.Match {
		case MatchExact:
			cmp = store.Exact
		case MatchIContains:
			cmp = store.IContains
		case MatchGTE:
			cmp = store.GTE
		case MatchLTE:
			cmp = store.LTE
		}
		v, err := parseValue(f.Param, raw, f.Kind, f.Match == MatchLTE)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, store.Criterion{Field: f.Field, Comparison: cmp, Value: v})
	}
	return criteria, nil
}

func parseRange(values url.Values, f Filter) ([]store.Criterion, error) {
	var lower, upper string
	var lowerParam, upperParam string
	if raw := strings.TrimSpace(values.Get(f.Param)); raw != "" {
		parts := strings.SplitN(raw, ",", 2)
		if len(parts) != 2 {
			return nil, &store.ValidationError{Field: f.Param, Message: "expected a from,to pair"}
		}
		lower, upper = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		lowerParam, upperParam = f.Param, f.Param
	}
	if raw := strings.TrimSpace(values.Get(f.Param + rangeAfterSuffix)); raw != "" {
		lower, lowerParam = raw, f.Param+rangeAfterSuffix
	}
	if raw := strings.TrimSpace(values.Get(f.Param + rangeBeforeSuffix)); raw != "" {
		upper, upperParam = raw, f.Param+rangeBeforeSuffix
	}

	var out []store.Criterion
	if lower != "" {
		v, err := parseValue(lowerParam, lower, f.Kind, false)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Criterion{Field: f.Field, Comparison: store.GTE, Value: v})
	}
	if upper != "" {
		v, err := parseValue(upperParam, upper, f.Kind, true)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Criterion{Field: f.Field, Comparison: store.LTE, Value: v})
	}
	return out, nil
}

func parseValue(param, raw string, kind Kind, upper bool) (any, error) {
	switch kind {
	case KindUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &store.ValidationError{Field: param, Message: "must be a valid UUID"}
		}
		return id, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &store.ValidationError{Field: param, Message: "must be a boolean"}
		}
		return b, nil
	case KindTime:
		t, err := ParseTimestamp(raw, upper)
		if err != nil {
			return nil, &store.ValidationError{Field: param, Message: err.Error()}
		}
		return t, nil
	default:
		return raw, nil
	}
}

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp or a bare date. A bare date is
// midnight UTC, or the last microsecond of that day when endOfDay is set.
func ParseTimestamp(raw string, endOfDay bool) (time.Time, error) {
	if d, err := time.ParseInLocation(dateLayout, raw, time.UTC); err == nil {
		if endOfDay {
			return d.Add(24*time.Hour - time.Microsecond), nil
		}
		return d, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
