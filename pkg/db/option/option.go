package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "eq"
	NE  Operator = "ne"
	LT  Operator = "lt"
	LTE Operator = "lte"
	GT  Operator = "gt"
	GTE Operator = "gte"
	IN  Operator = "in"
)

var sqlOperators = map[Operator]string{
	EQ:  "=",
	NE:  "<>",
	LT:  "<",
	LTE: "<=",
	GT:  ">",
	GTE: ">=",
	IN:  "IN",
}

// ParseOperator accepts the lowercase operator names used in filter expressions.
func ParseOperator(raw string) (Operator, bool) {
	op := Operator(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := sqlOperators[op]
	return op, ok
}

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single WHERE condition. Field must be a trusted column name.
func ApplyOperator(c Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		op, ok := sqlOperators[c.Operator]
		if !ok {
			_ = db.AddError(fmt.Errorf("unsupported operator %q", c.Operator))
			return db
		}
		if c.Operator == IN {
			return db.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, op), c.Value)
	})
}

// WithOrder applies an ordered list of sort keys.
func WithOrder(sorts []Sort) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, s := range sorts {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Column}, Desc: s.Desc})
		}
		return db
	})
}

func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if p.Limit > 0 {
			db = db.Limit(p.Limit)
		}
		if offset := p.Offset(); offset > 0 {
			db = db.Offset(offset)
		}
		return db
	})
}

// Apply runs every option against db in order.
func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		db = opt.Apply(db)
	}
	return db
}
