package query

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/chirino/messaging-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(raw string) url.Values {
	v, err := url.ParseQuery(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func requireValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *store.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	require.Equal(t, field, ve.Field)
}

func TestParseCriteria_MessageFiltersCompose(t *testing.T) {
	q, err := Messages.Parse(values("sender_id=alice&is_read=false&message_body=Hello"))
	require.NoError(t, err)
	require.Equal(t, []store.Criterion{
		{Field: store.FieldSenderID, Comparison: store.Exact, Value: "alice"},
		{Field: store.FieldMessageBody, Comparison: store.IContains, Value: "Hello"},
		{Field: store.FieldIsRead, Comparison: store.Exact, Value: false},
	}, q.Criteria)
}

func TestParseCriteria_UnknownParamsIgnored(t *testing.T) {
	q, err := Messages.Parse(values("participant_id=bob&color=blue"))
	require.NoError(t, err)
	require.Empty(t, q.Criteria)
}

func TestParseCriteria_MalformedValues(t *testing.T) {
	cases := map[string]string{
		"conversation_id=not-a-uuid": "conversation_id",
		"is_read=maybe":              "is_read",
		"sent_at_after=yesterday":    "sent_at_after",
		"sent_at_range=2024-01-01":   "sent_at_range",
		"sent_at_range_before=later": "sent_at_range_before",
	}
	for raw, field := range cases {
		t.Run(raw, func(t *testing.T) {
			_, err := Messages.Parse(values(raw))
			requireValidationField(t, err, field)
		})
	}
}

func TestParseCriteria_ConversationUUID(t *testing.T) {
	id := uuid.New()
	q, err := Messages.Parse(values("conversation_id=" + id.String()))
	require.NoError(t, err)
	require.Len(t, q.Criteria, 1)
	require.Equal(t, id, q.Criteria[0].Value)
}

func TestParseCriteria_RangeDateOnlyCoversWholeDay(t *testing.T) {
	q, err := Messages.Parse(values("sent_at_range=2024-05-01,2024-05-01"))
	require.NoError(t, err)
	require.Len(t, q.Criteria, 2)

	lower := q.Criteria[0]
	upper := q.Criteria[1]
	assert.Equal(t, store.GTE, lower.Comparison)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), lower.Value)
	assert.Equal(t, store.LTE, upper.Comparison)
	assert.Equal(t, time.Date(2024, 5, 1, 23, 59, 59, 999999000, time.UTC), upper.Value)
}

func TestParseCriteria_RangeOpenBounds(t *testing.T) {
	q, err := Conversations.Parse(values("created_at_range=2024-05-01T10:00:00Z,"))
	require.NoError(t, err)
	require.Equal(t, []store.Criterion{
		{Field: store.FieldCreatedAt, Comparison: store.GTE, Value: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}, q.Criteria)

	q, err = Conversations.Parse(values("created_at_range_before=2024-05-02"))
	require.NoError(t, err)
	require.Equal(t, []store.Criterion{
		{Field: store.FieldCreatedAt, Comparison: store.LTE, Value: time.Date(2024, 5, 2, 23, 59, 59, 999999000, time.UTC)},
	}, q.Criteria)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		"2024-05-01T12:30:00Z",
		"2024-05-01T14:30:00+02:00",
		"2024-05-01T12:30:00",
		"2024-05-01 12:30:00",
		"2024-05-01T12:30",
	} {
		got, err := ParseTimestamp(raw, false)
		require.NoError(t, err, raw)
		require.True(t, want.Equal(got), "%s parsed as %s", raw, got)
	}
}

func TestParseOrdering(t *testing.T) {
	spec := Messages.Ordering

	require.Equal(t, []store.OrderField{{Field: store.FieldSentAt}}, ParseOrdering("", spec))
	require.Equal(t, []store.OrderField{{Field: store.FieldUpdatedAt, Desc: true}}, ParseOrdering("-updated_at", spec))
	require.Equal(t, []store.OrderField{{Field: store.FieldSentAt}}, ParseOrdering("bogus,-password", spec))
	require.Equal(t,
		[]store.OrderField{{Field: store.FieldUpdatedAt}, {Field: store.FieldSentAt, Desc: true}},
		ParseOrdering("updated_at, -sent_at, updated_at", spec),
	)
}

func TestParseOrdering_ConversationDefaultDescending(t *testing.T) {
	q, err := Conversations.Parse(values("ordering=sent_at"))
	require.NoError(t, err)
	require.Equal(t, []store.OrderField{{Field: store.FieldCreatedAt, Desc: true}}, q.Ordering)
}

func TestParsePage(t *testing.T) {
	spec := PageSpec{DefaultSize: 20, MaxSize: 100}

	p, err := ParsePage(values(""), spec)
	require.NoError(t, err)
	require.Equal(t, PageRequest{Number: 1, Size: 20}, p)

	p, err = ParsePage(values("page=3&page_size=500"), spec)
	require.NoError(t, err)
	require.Equal(t, PageRequest{Number: 3, Size: 100}, p)
	require.Equal(t, 200, p.Offset())

	for _, raw := range []string{"page_size=0", "page_size=-4", "page_size=lots"} {
		p, err = ParsePage(values(raw), spec)
		require.NoError(t, err)
		require.Equal(t, 20, p.Size, raw)
	}

	for _, raw := range []string{"page=0", "page=-1", "page=last"} {
		_, err = ParsePage(values(raw), spec)
		requireValidationField(t, err, "page")
	}
}

func TestNewPage_Links(t *testing.T) {
	base, err := url.Parse("http://example.com/api/messages?is_read=false&page=2&page_size=2")
	require.NoError(t, err)

	page := NewPage([]int{3, 4}, 5, PageRequest{Number: 2, Size: 2}, base)
	require.EqualValues(t, 5, page.Count)
	require.EqualValues(t, 3, page.TotalPages)
	require.Equal(t, 2, page.CurrentPage)
	require.Equal(t, 2, page.PageSize)
	require.NotNil(t, page.Next)
	require.Equal(t, "http://example.com/api/messages?is_read=false&page=3&page_size=2", *page.Next)
	require.NotNil(t, page.Previous)
	require.Equal(t, "http://example.com/api/messages?is_read=false&page_size=2", *page.Previous)
}

func TestNewPage_OutOfRange(t *testing.T) {
	base, err := url.Parse("http://example.com/api/messages?page=9")
	require.NoError(t, err)

	page := NewPage[int](nil, 5, PageRequest{Number: 9, Size: 2}, base)
	require.NotNil(t, page.Results)
	require.Empty(t, page.Results)
	require.EqualValues(t, 3, page.TotalPages)
	require.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	require.Equal(t, "http://example.com/api/messages?page=3", *page.Previous)
}

func TestNewPage_Empty(t *testing.T) {
	page := NewPage[string](nil, 0, PageRequest{Number: 1, Size: 20}, nil)
	require.EqualValues(t, 0, page.TotalPages)
	require.Nil(t, page.Next)
	require.Nil(t, page.Previous)
	require.Equal(t, []string{}, page.Results)
}

func TestQueryList(t *testing.T) {
	q, err := Users.Parse(values("username=ali&page=2&page_size=5"))
	require.NoError(t, err)
	lq := q.List()
	require.Equal(t, 5, lq.Limit)
	require.Equal(t, 5, lq.Offset)
	require.Equal(t, []store.OrderField{{Field: store.FieldUsername}}, lq.Ordering)
}
