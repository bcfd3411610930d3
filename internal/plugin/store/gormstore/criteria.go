package gormstore

import (
	"fmt"
	"strings"

	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"gorm.io/gorm"
)

// column describes how a logical field is reached in SQL. When exists is set
// the predicate is placed inside that EXISTS subquery via its %s verb.
type column struct {
	name   string
	exists string
}

var messageColumns = map[registrystore.Field]column{
	registrystore.FieldSenderUsername: {
		name:   "su.username",
		exists: "EXISTS (SELECT 1 FROM users su WHERE su.id = messages.sender_id AND %s)",
	},
	registrystore.FieldSenderID:       {name: "messages.sender_id"},
	registrystore.FieldConversationID: {name: "messages.conversation_id"},
	registrystore.FieldSentAt:         {name: "messages.sent_at"},
	registrystore.FieldUpdatedAt:      {name: "messages.updated_at"},
	registrystore.FieldMessageBody:    {name: "messages.message_body"},
	registrystore.FieldIsRead:         {name: "messages.is_read"},
}

var conversationColumns = map[registrystore.Field]column{
	registrystore.FieldParticipantUsername: {
		name: "pu.username",
		exists: "EXISTS (SELECT 1 FROM conversation_participants pp JOIN users pu ON pu.id = pp.user_id " +
			"WHERE pp.conversation_id = conversations.id AND %s)",
	},
	registrystore.FieldParticipantID: {
		name:   "pp.user_id",
		exists: "EXISTS (SELECT 1 FROM conversation_participants pp WHERE pp.conversation_id = conversations.id AND %s)",
	},
	registrystore.FieldCreatedAt: {name: "conversations.created_at"},
	registrystore.FieldUpdatedAt: {name: "conversations.updated_at"},
}

var userColumns = map[registrystore.Field]column{
	registrystore.FieldUsername: {name: "users.username"},
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}

func predicate(col string, c registrystore.Criterion) (string, any, error) {
	switch c.Comparison {
	case registrystore.Exact:
		return col + " = ?", c.Value, nil
	case registrystore.IContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("icontains on %s requires a string, got %T", c.Field, c.Value)
		}
		return "LOWER(" + col + `) LIKE LOWER(?) ESCAPE '\'`, containsPattern(s), nil
	case registrystore.GTE:
		return col + " >= ?", c.Value, nil
	case registrystore.LTE:
		return col + " <= ?", c.Value, nil
	default:
		return "", nil, fmt.Errorf("unsupported comparison %s on %s", c.Comparison, c.Field)
	}
}

// applyCriteria ANDs every criterion onto db.
func applyCriteria(db *gorm.DB, columns map[registrystore.Field]column, criteria []registrystore.Criterion) (*gorm.DB, error) {
	for _, c := range criteria {
		col, ok := columns[c.Field]
		if !ok {
			return nil, fmt.Errorf("field %s is not filterable here", c.Field)
		}
		expr, arg, err := predicate(col.name, c)
		if err != nil {
			return nil, err
		}
		if col.exists != "" {
			expr = fmt.Sprintf(col.exists, expr)
		}
		db = db.Where(expr, arg)
	}
	return db, nil
}

// applyOrdering orders by the requested fields followed by the id tiebreaker.
func applyOrdering(db *gorm.DB, columns map[registrystore.Field]column, ordering []registrystore.OrderField, idColumn string) *gorm.DB {
	for _, o := range ordering {
		col, ok := columns[o.Field]
		if !ok || col.exists != "" {
			continue
		}
		if o.Desc {
			db = db.Order(col.name + " DESC")
		} else {
			db = db.Order(col.name + " ASC")
		}
	}
	return db.Order(idColumn + " ASC")
}

func applyPage(db *gorm.DB, q registrystore.ListQuery) *gorm.DB {
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	return db
}
