package query

import (
	"strings"

	"github.com/chirino/messaging-service/internal/registry/store"
	"github.com/samber/lo"
)

// OrderingParam is the query parameter carrying the requested ordering.
const OrderingParam = "ordering"

// OrderSpec lists the fields a caller may order by and the fallback ordering.
type OrderSpec struct {
	Allowed []store.Field
	Default []store.OrderField
}

// ParseOrdering parses a comma separated list such as "-updated_at,sent_at".
// Unknown fields are dropped; when nothing usable remains the default applies.
func ParseOrdering(raw string, spec OrderSpec) []store.OrderField {
	var out []store.OrderField
	seen := map[store.Field]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := store.Field(strings.TrimPrefix(part, "-"))
		if name == "" || seen[name] || !lo.Contains(spec.Allowed, name) {
			continue
		}
		seen[name] = true
		out = append(out, store.OrderField{Field: name, Desc: desc})
	}
	if len(out) == 0 {
		out = append(out, spec.Default...)
	}
	return out
}
