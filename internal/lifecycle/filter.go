package lifecycle

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
)

// Kind is the column type a query value is coerced to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Field maps a query parameter to a column.
type Field struct {
	Column string
	Kind   Kind
}

// Fields maps external query parameter names to columns. "id" is always
// mapped to the primary key and need not be listed.
type Fields map[string]Field

func StringField(column string) Field { return Field{Column: column, Kind: KindString} }
func IntField(column string) Field    { return Field{Column: column, Kind: KindInt} }
func BoolField(column string) Field   { return Field{Column: column, Kind: KindBool} }

// Paging parameters recognised on every list query.
const (
	ParamLimit  = "limit"
	ParamOffset = "offset"
)

var operators = map[string]repository.Operator{
	"eq":   repository.OpEq,
	"ne":   repository.OpNe,
	"gt":   repository.OpGt,
	"gte":  repository.OpGte,
	"lt":   repository.OpLt,
	"lte":  repository.OpLte,
	"in":   repository.OpIn,
	"like": repository.OpLike,
}

// ParseFilter converts query parameters into a repository filter. Values may
// carry an operator prefix such as "[gte]1700000000"; "[in]" values are comma
// separated. Unknown parameters are ignored.
func (f Fields) ParseFilter(params url.Values) (repository.Filter, error) {
	var filter repository.Filter
	for name, values := range params {
		switch name {
		case ParamLimit, ParamOffset:
			n, err := strconv.Atoi(firstValue(values))
			if err != nil || n < 0 {
				return filter, invalidParam(name, firstValue(values))
			}
			if name == ParamLimit {
				filter.Limit = n
			} else {
				filter.Offset = n
			}
			continue
		}

		field, ok := f[name]
		if name == "id" {
			field, ok = IntField("id"), true
		}
		if !ok {
			continue
		}
		for _, raw := range values {
			p, err := parsePredicate(name, field, raw)
			if err != nil {
				return filter, err
			}
			filter.Predicates = append(filter.Predicates, p)
		}
	}
	return filter, nil
}

func parsePredicate(name string, field Field, raw string) (repository.Predicate, error) {
	op := repository.OpEq
	value := raw
	if strings.HasPrefix(raw, "[") {
		end := strings.Index(raw, "]")
		if end < 0 {
			return repository.Predicate{}, invalidParam(name, raw)
		}
		parsed, ok := operators[raw[1:end]]
		if !ok {
			return repository.Predicate{}, invalidParam(name, raw)
		}
		op, value = parsed, raw[end+1:]
	}

	if op == repository.OpIn {
		parts := strings.Split(value, ",")
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			v, err := coerce(field.Kind, strings.TrimSpace(part))
			if err != nil {
				return repository.Predicate{}, invalidParam(name, raw)
			}
			values = append(values, v)
		}
		return repository.Predicate{Column: field.Column, Op: op, Value: values}, nil
	}

	v, err := coerce(field.Kind, value)
	if err != nil {
		return repository.Predicate{}, invalidParam(name, raw)
	}
	return repository.Predicate{Column: field.Column, Op: op, Value: v}, nil
}

func coerce(kind Kind, value string) (any, error) {
	switch kind {
	case KindInt:
		return strconv.ParseInt(value, 10, 64)
	case KindBool:
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func invalidParam(name, value string) error {
	return errors.Newf("invalid value %q for query parameter %s", value, name).
		Component("lifecycle").
		Category(errors.CategoryValidation).
		Context("param", name).
		Build()
}
