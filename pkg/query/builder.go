package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is one ORDER BY term. Field is a projected view name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields reads "name,-createdAt" into ascending name and
// descending createdAt. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// params numbers positional arguments as they are bound.
type params struct {
	args []any
}

func (p *params) bind(v any) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

type condition func(p *params) string

// Builder assembles SELECT statements over a ProjectionMap. Conditions
// are ANDed; nil or empty inputs add nothing.
type Builder struct {
	projection  *ProjectionMap
	conditions  []condition
	orderBy     []SortField
	defaultSort []SortField
}

func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

func (b *Builder) Build() (string, []any) {
	var p params
	sql := b.selectFrom() + b.where(&p) + b.order()
	return sql, p.args
}

func (b *Builder) BuildCount() (string, []any) {
	var p params
	sql := "SELECT COUNT(*) FROM " + b.projection.From() + b.where(&p)
	return sql, p.args
}

func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	var p params
	sql := fmt.Sprintf("%s%s%s LIMIT %d OFFSET %d",
		b.selectFrom(), b.where(&p), b.order(), pageSize, (page-1)*pageSize)
	return sql, p.args
}

// BuildSingle ignores any conditions and selects one row by key.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return b.selectFrom() + " WHERE " + b.projection.Column(idField) + " = $1", []any{id}
}

// BuildSingleForUpdate locks the base-table row. Use inside a transaction.
func (b *Builder) BuildSingleForUpdate(idField string, id any) (string, []any) {
	sql, args := b.BuildSingle(idField, id)
	return sql + " FOR UPDATE OF " + b.projection.Alias(), args
}

// OrderByFields replaces the default sort. Unprojected fields are
// dropped, so client-supplied names never reach the SQL text.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.orderBy = b.orderBy[:0]
	for _, f := range fields {
		if b.projection.Has(f.Field) {
			b.orderBy = append(b.orderBy, f)
		}
	}
	return b
}

func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.Column(field)
	return b.add(func(p *params) string {
		return col + " = " + p.bind(value)
	})
}

// WhereContains matches a case-insensitive substring. LIKE wildcards in
// value are matched literally.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	col := b.projection.Column(field)
	pattern := containsPattern(*value)
	return b.add(func(p *params) string {
		return col + " ILIKE " + p.bind(pattern)
	})
}

// WhereBetween is inclusive and applies only when both bounds are set.
func (b *Builder) WhereBetween(field string, low, high any) *Builder {
	if isNil(low) || isNil(high) {
		return b
	}
	col := b.projection.Column(field)
	return b.add(func(p *params) string {
		return col + " BETWEEN " + p.bind(low) + " AND " + p.bind(high)
	})
}

// WhereSearch matches search as a substring of any of fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || strings.TrimSpace(*search) == "" || len(fields) == 0 {
		return b
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.Column(f)
	}
	pattern := containsPattern(strings.TrimSpace(*search))
	return b.add(func(p *params) string {
		ors := make([]string, len(cols))
		for i, col := range cols {
			ors[i] = col + " ILIKE " + p.bind(pattern)
		}
		return "(" + strings.Join(ors, " OR ") + ")"
	})
}

func (b *Builder) add(c condition) *Builder {
	b.conditions = append(b.conditions, c)
	return b
}

func (b *Builder) selectFrom() string {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From()
}

func (b *Builder) where(p *params) string {
	if len(b.conditions) == 0 {
		return ""
	}
	clauses := make([]string, len(b.conditions))
	for i, c := range b.conditions {
		clauses[i] = c(p)
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (b *Builder) order() string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
