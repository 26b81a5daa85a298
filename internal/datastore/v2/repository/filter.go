package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Operator is a comparison applied by a Predicate.
type Operator string

const (
	OpEq   Operator = "eq"
	OpNe   Operator = "ne"
	OpGt   Operator = "gt"
	OpGte  Operator = "gte"
	OpLt   Operator = "lt"
	OpLte  Operator = "lte"
	OpIn   Operator = "in"
	OpLike Operator = "like"
)

// Predicate restricts a single column.
type Predicate struct {
	Column string
	Op     Operator
	Value  any
}

// Filter controls list and count queries. A nil Namespace matches every
// namespace.
type Filter struct {
	Namespace  *string
	Predicates []Predicate
	Limit      int
	Offset     int
}

// InNamespace returns a filter restricted to namespace.
func InNamespace(namespace string) Filter {
	return Filter{Namespace: &namespace}
}

// Where appends a predicate and returns the filter.
func (f Filter) Where(column string, op Operator, value any) Filter {
	f.Predicates = append(f.Predicates, Predicate{Column: column, Op: op, Value: value})
	return f
}

func (p Predicate) expression() clause.Expression {
	col := clause.Column{Name: p.Column}
	switch p.Op {
	case OpNe:
		return clause.Neq{Column: col, Value: p.Value}
	case OpGt:
		return clause.Gt{Column: col, Value: p.Value}
	case OpGte:
		return clause.Gte{Column: col, Value: p.Value}
	case OpLt:
		return clause.Lt{Column: col, Value: p.Value}
	case OpLte:
		return clause.Lte{Column: col, Value: p.Value}
	case OpLike:
		return clause.Like{Column: col, Value: p.Value}
	case OpIn:
		values, ok := p.Value.([]any)
		if !ok {
			values = []any{p.Value}
		}
		return clause.IN{Column: col, Values: values}
	default:
		return clause.Eq{Column: col, Value: p.Value}
	}
}

// apply adds the filter's conditions to query. Paging is applied separately
// so that Count ignores it.
func (f Filter) apply(query *gorm.DB) *gorm.DB {
	if f.Namespace != nil {
		query = query.Where(clause.Eq{Column: clause.Column{Name: "namespace"}, Value: *f.Namespace})
	}
	for _, p := range f.Predicates {
		query = query.Where(p.expression())
	}
	return query
}

func (f Filter) page(query *gorm.DB) *gorm.DB {
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}
	return query
}
