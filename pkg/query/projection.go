// Package query provides SQL query building utilities with projection mapping.
package query

import (
	"fmt"
	"strings"
)

type join struct {
	kind   string
	schema string
	table  string
	alias  string
	on     string
}

// ProjectionMap maps view property names to qualified column references (alias.column).
// Columns projected after a Join are qualified with the joined table's alias.
type ProjectionMap struct {
	schema     string
	table      string
	alias      string
	current    string
	joins      []join
	columns    map[string]string
	columnList []string
}

// NewProjectionMap creates a ProjectionMap for the given schema, table, and alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:     schema,
		table:      table,
		alias:      alias,
		current:    alias,
		columns:    make(map[string]string),
		columnList: make([]string, 0),
	}
}

// Project adds a column mapping from database column to view property name.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := fmt.Sprintf("%s.%s", p.current, column)
	p.columns[viewName] = qualified
	p.columnList = append(p.columnList, qualified)
	return p
}

// Join adds a joined table. kind is the join keyword (e.g. "LEFT JOIN")
// and on is the join condition written against table aliases.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.joins = append(p.joins, join{
		kind:   kind,
		schema: schema,
		table:  table,
		alias:  alias,
		on:     on,
	})
	p.current = alias
	return p
}

// Alias returns the base table alias.
func (p *ProjectionMap) Alias() string {
	return p.alias
}

// Table returns the fully qualified base table reference with alias (schema.table alias).
func (p *ProjectionMap) Table() string {
	return fmt.Sprintf("%s.%s %s", p.schema, p.table, p.alias)
}

// From returns the base table followed by all joins.
func (p *ProjectionMap) From() string {
	if len(p.joins) == 0 {
		return p.Table()
	}

	var sb strings.Builder
	sb.WriteString(p.Table())
	for _, j := range p.joins {
		fmt.Fprintf(&sb, " %s %s.%s %s ON %s", j.kind, j.schema, j.table, j.alias, j.on)
	}
	return sb.String()
}

// Column returns the qualified column for a view property name, or the input if not mapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

// Has reports whether viewName is a projected property.
func (p *ProjectionMap) Has(viewName string) bool {
	_, ok := p.columns[viewName]
	return ok
}

// Columns returns all mapped columns as a comma-separated string.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columnList, ", ")
}

// ColumnList returns all mapped columns as a slice.
func (p *ProjectionMap) ColumnList() []string {
	return p.columnList
}
