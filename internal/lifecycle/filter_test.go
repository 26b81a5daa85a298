package lifecycle

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
)

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestParseFilter(t *testing.T) {
	t.Parallel()

	fields := Fields{
		"startTime": IntField("start_time"),
		"isChild":   BoolField("is_child"),
		"metric":    StringField("metric"),
	}

	tests := []struct {
		name   string
		params url.Values
		want   []repository.Predicate
	}{
		{
			name:   "plain equality",
			params: url.Values{"metric": {"p95"}},
			want:   []repository.Predicate{{Column: "metric", Op: repository.OpEq, Value: "p95"}},
		},
		{
			name:   "numeric with operator",
			params: url.Values{"startTime": {"[gte]1700000000000"}},
			want:   []repository.Predicate{{Column: "start_time", Op: repository.OpGte, Value: int64(1700000000000)}},
		},
		{
			name:   "bool",
			params: url.Values{"isChild": {"false"}},
			want:   []repository.Predicate{{Column: "is_child", Op: repository.OpEq, Value: false}},
		},
		{
			name:   "id always mapped",
			params: url.Values{"id": {"[in]1, 2,3"}},
			want:   []repository.Predicate{{Column: "id", Op: repository.OpIn, Value: []any{int64(1), int64(2), int64(3)}}},
		},
		{
			name:   "like",
			params: url.Values{"metric": {"[like]p9%"}},
			want:   []repository.Predicate{{Column: "metric", Op: repository.OpLike, Value: "p9%"}},
		},
		{
			name:   "repeated values",
			params: url.Values{"startTime": {"[gte]10", "[lt]20"}},
			want: []repository.Predicate{
				{Column: "start_time", Op: repository.OpGte, Value: int64(10)},
				{Column: "start_time", Op: repository.OpLt, Value: int64(20)},
			},
		},
		{
			name:   "unknown ignored",
			params: url.Values{"owner": {"alice"}},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			filter, err := fields.ParseFilter(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, filter.Predicates)
			assert.Nil(t, filter.Namespace)
		})
	}
}

func TestParseFilter_Paging(t *testing.T) {
	t.Parallel()

	filter, err := Fields{}.ParseFilter(url.Values{"limit": {"25"}, "offset": {"50"}})
	require.NoError(t, err)
	assert.Equal(t, 25, filter.Limit)
	assert.Equal(t, 50, filter.Offset)
	assert.Empty(t, filter.Predicates)
}

func TestParseFilter_Invalid(t *testing.T) {
	t.Parallel()

	fields := Fields{"startTime": IntField("start_time"), "isChild": BoolField("is_child")}
	tests := []struct {
		name   string
		params url.Values
	}{
		{"unknown operator", url.Values{"startTime": {"[near]5"}}},
		{"unterminated operator", url.Values{"startTime": {"[gte5"}}},
		{"not a number", url.Values{"startTime": {"yesterday"}}},
		{"bad list element", url.Values{"id": {"[in]1,two"}}},
		{"not a bool", url.Values{"isChild": {"maybe"}}},
		{"negative limit", url.Values{"limit": {"-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := fields.ParseFilter(tt.params)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}
}
