// Package query turns listing request parameters into typed criteria,
// ordering and a page window, and wraps results in the page envelope.
package query

import (
	"net/url"

	"github.com/chirino/messaging-service/internal/registry/store"
)

// Resource describes how one collection may be filtered, ordered and paged.
type Resource struct {
	Name     string
	Filters  []Filter
	Ordering OrderSpec
	Page     PageSpec
}

// Query is a fully shaped listing request.
type Query struct {
	Criteria []store.Criterion
	Ordering []store.OrderField
	Page     PageRequest
}

// List converts the query to its storage form.
func (q Query) List() store.ListQuery {
	return store.ListQuery{
		Criteria: q.Criteria,
		Ordering: q.Ordering,
		Limit:    q.Page.Size,
		Offset:   q.Page.Offset(),
	}
}

var (
	Messages = Resource{
		Name:    "messages",
		Filters: MessageFilters,
		Ordering: OrderSpec{
			Allowed: []store.Field{store.FieldSentAt, store.FieldUpdatedAt},
			Default: []store.OrderField{{Field: store.FieldSentAt}},
		},
		Page: PageSpec{DefaultSize: 20, MaxSize: 100},
	}

	Conversations = Resource{
		Name:    "conversations",
		Filters: ConversationFilters,
		Ordering: OrderSpec{
			Allowed: []store.Field{store.FieldCreatedAt, store.FieldUpdatedAt},
			Default: []store.OrderField{{Field: store.FieldCreatedAt, Desc: true}},
		},
		Page: PageSpec{DefaultSize: 20, MaxSize: 50},
	}

	Users = Resource{
		Name:    "users",
		Filters: UserFilters,
		Ordering: OrderSpec{
			Default: []store.OrderField{{Field: store.FieldUsername}},
		},
		Page: PageSpec{DefaultSize: 10, MaxSize: 100},
	}
)

// Parse shapes request parameters for this resource.
func (r Resource) Parse(values url.Values) (Query, error) {
	criteria, err := ParseCriteria(values, r.Filters)
	if err != nil {
		return Query{}, err
	}
	page, err := ParsePage(values, r.Page)
	if err != nil {
		return Query{}, err
	}
	return Query{
		Criteria: criteria,
		Ordering: ParseOrdering(values.Get(OrderingParam), r.Ordering),
		Page:     page,
	}, nil
}
