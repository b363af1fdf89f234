package option

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
)

// Field exposes one column to listing requests under a public name.
type Field struct {
	Name       string
	Column     string
	Type       FieldType
	Filterable bool
	Sortable   bool
	Searchable bool
	// Local fields can only be filtered by the server, never by the caller.
	Local bool
}

type Sort struct {
	Column string
	Desc   bool
}

// Definition describes which columns of a table a listing may search, filter and sort.
type Definition struct {
	Fields      []Field
	DefaultSort []Sort
}

// Params are the raw listing parameters of a request.
type Params struct {
	Search       string
	Filters      []string
	Sorts        []string
	LocalFilters []string
}

// Listing is a validated listing request ready to be applied to a statement.
type Listing struct {
	Conditions []QueryOption
	Sorts      []Sort
}

// Where returns the filtering options.
func (l Listing) Where() []QueryOption {
	return l.Conditions
}

// Order returns the ordering option.
func (l Listing) Order() QueryOption {
	return WithOrder(l.Sorts)
}

// Parse validates params against the definition. Every rejected parameter is
// reported in the returned ValidationErrors.
func (d Definition) Parse(p Params) (Listing, error) {
	var (
		listing Listing
		errs    ValidationErrors
	)

	if cond, ok := d.search(p.Search, &errs); ok {
		listing.Conditions = append(listing.Conditions, cond)
	}
	for i, expr := range p.LocalFilters {
		if cond, ok := d.filter(fmt.Sprintf("localFilters.%d", i+1), expr, true, &errs); ok {
			listing.Conditions = append(listing.Conditions, cond)
		}
	}
	for i, expr := range p.Filters {
		if cond, ok := d.filter(fmt.Sprintf("filters.%d", i+1), expr, false, &errs); ok {
			listing.Conditions = append(listing.Conditions, cond)
		}
	}
	listing.Sorts = d.sorts(p.Sorts, &errs)

	if len(errs) > 0 {
		return Listing{}, errs
	}
	return listing, nil
}

func (d Definition) field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (d Definition) search(term string, errs *ValidationErrors) (QueryOption, bool) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, false
	}

	_, numErr := strconv.ParseFloat(term, 64)
	numeric := numErr == nil

	var (
		clauses []string
		args    []any
	)
	for _, f := range d.Fields {
		if !f.Searchable {
			continue
		}
		switch f.Type {
		case TypeInteger:
			if numeric {
				clauses = append(clauses, fmt.Sprintf("CAST(%s AS TEXT) LIKE ?", f.Column))
				args = append(args, term+"%")
			}
		case TypeString:
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", f.Column))
			args = append(args, "%"+strings.ToLower(term)+"%")
		}
	}

	if len(clauses) == 0 {
		errs.add("search", "no available search fields for this entity")
		return nil, false
	}

	sql := "(" + strings.Join(clauses, " OR ") + ")"
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(sql, args...)
	}), true
}

func (d Definition) filter(key, expr string, local bool, errs *ValidationErrors) (QueryOption, bool) {
	parts := strings.SplitN(strings.TrimSpace(expr), " ", 3)
	if len(parts) != 3 {
		errs.add(key, "invalid format")
		return nil, false
	}

	f, ok := d.field(parts[0])
	if !ok || f.Local != local || (!local && !f.Filterable) {
		errs.add(key, "invalid field")
		return nil, false
	}

	op, ok := ParseOperator(parts[1])
	if !ok {
		errs.add(key, "invalid operator")
		return nil, false
	}

	raw, err := splitValues(parts[2])
	if err != nil {
		errs.add(key, "invalid value")
		return nil, false
	}
	if op != IN && len(raw) != 1 {
		errs.add(key, "operator expects a single value")
		return nil, false
	}

	values := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := convertValue(f.Type, r)
		if err != nil {
			errs.add(key, fmt.Sprintf("value must be a valid %s", f.Type))
			return nil, false
		}
		values = append(values, v)
	}

	if op == IN {
		return ApplyOperator(Condition{Field: f.Column, Operator: IN, Value: values}), true
	}
	return ApplyOperator(Condition{Field: f.Column, Operator: op, Value: values[0]}), true
}

func (d Definition) sorts(exprs []string, errs *ValidationErrors) []Sort {
	var (
		out  []Sort
		seen = map[string]bool{}
		bad  bool
	)
	for i, expr := range exprs {
		key := fmt.Sprintf("sort.%d", i+1)
		parts := strings.Fields(expr)
		if len(parts) != 2 {
			errs.add(key, "invalid format")
			bad = true
			continue
		}
		f, ok := d.field(parts[0])
		if !ok || !f.Sortable {
			errs.add(key, "invalid field")
			bad = true
			continue
		}
		if seen[f.Column] {
			errs.add(key, fmt.Sprintf("duplicate with %q field", f.Name))
			bad = true
			continue
		}
		var desc bool
		switch strings.ToLower(parts[1]) {
		case "asc":
		case "desc":
			desc = true
		default:
			errs.add(key, "invalid direction")
			bad = true
			continue
		}
		seen[f.Column] = true
		out = append(out, Sort{Column: f.Column, Desc: desc})
	}
	if bad {
		return nil
	}

	for _, s := range d.DefaultSort {
		if seen[s.Column] {
			continue
		}
		seen[s.Column] = true
		out = append(out, s)
	}
	return out
}

func convertValue(t FieldType, raw string) (any, error) {
	switch t {
	case TypeInteger:
		return strconv.ParseInt(raw, 10, 64)
	case TypeBoolean:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errMalformedValue
	case TypeDate:
		return time.Parse(time.RFC3339, raw)
	default:
		return raw, nil
	}
}
