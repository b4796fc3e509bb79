// Package schema builds an in-memory catalog of tables and indexes by
// scanning the master table rooted at page 1, the way the teacher's
// internal/metadata package once loaded a single table's definition on
// demand, generalized here to a whole-database, load-once catalog.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/armon/go-radix"
	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/litescan/internal/btree"
	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/storage"
	"github.com/joeandaverde/litescan/internal/value"
	"github.com/joeandaverde/litescan/tsql"
	"github.com/joeandaverde/litescan/tsql/ast"
)

const masterTableRootPage = 1

// Column describes one column of a table, in declaration order.
type Column struct {
	Name       string
	Declared   string
	Affinity   value.Affinity
	PrimaryKey bool
}

// Table is a table's catalog entry: its root page, its columns, and
// whether one of those columns aliases the rowid.
type Table struct {
	Name         string
	RootPage     uint32
	Columns      []Column
	RowIDAlias   int // index into Columns, or -1 if no INTEGER PRIMARY KEY alias
	Indexes      []*Index
}

// ColumnIndex returns the position of name in t.Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Index is a secondary index's catalog entry.
type Index struct {
	Name      string
	TableName string
	RootPage  uint32
	Columns   []string // key columns, in index order
	Unique    bool
	Auto      bool // sqlite_autoindex_* implicit index, no CREATE INDEX text
}

// Catalog is the whole database's schema, keyed case-insensitively.
type Catalog struct {
	tables *radix.Tree
	order  []string
}

// Load traverses the master table and builds a Catalog. A single
// malformed schema row is logged and skipped rather than failing the
// whole load, per spec: an otherwise-healthy database should stay
// queryable even if one row's stored SQL doesn't parse.
func Load(ctx context.Context, p pager.Pager, log *logrus.Logger) (*Catalog, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	cur, err := btree.NewCursor(ctx, p, masterTableRootPage)
	if err != nil {
		return nil, &errs.FormatError{Msg: "cannot open master table", Err: err}
	}

	cat := &Catalog{tables: radix.New()}
	var pendingIndexes []*Index

	for {
		cell, ok, err := cur.NextTableCell(ctx)
		if err != nil {
			return nil, &errs.FormatError{Msg: "cannot read master table", Err: err}
		}
		if !ok {
			break
		}

		row, err := storage.DecodeRecord(cell.Payload)
		if err != nil {
			log.WithError(err).Warn("skipping malformed schema row")
			continue
		}
		if len(row) < 5 {
			log.Warn("skipping schema row with too few columns")
			continue
		}

		kind, _ := row[0].Text()
		name, _ := row[1].Text()
		tblName, _ := row[2].Text()
		rootPage, _ := row[3].Integer()
		sqlText, _ := row[4].Text()

		switch kind {
		case "table":
			table, err := parseTableSQL(name, uint32(rootPage), sqlText)
			if err != nil {
				log.WithError(err).WithField("table", name).Warn("skipping malformed table schema")
				continue
			}
			cat.put(table)
		case "index":
			idx, err := parseIndexSQL(name, tblName, uint32(rootPage), sqlText)
			if err != nil {
				log.WithError(err).WithField("index", name).Warn("skipping malformed index schema")
				continue
			}
			pendingIndexes = append(pendingIndexes, idx)
		default:
			// views, triggers, and virtual tables are non-goals; ignore silently.
		}
	}

	for _, idx := range pendingIndexes {
		table, ok := cat.Table(idx.TableName)
		if !ok {
			continue
		}
		if idx.Auto {
			idx.Columns = primaryKeyColumns(table)
			idx.Unique = true
		}
		table.Indexes = append(table.Indexes, idx)
	}

	return cat, nil
}

func (c *Catalog) put(t *Table) {
	key := strings.ToLower(t.Name)
	if _, existed := c.tables.Insert(key, t); !existed {
		c.order = append(c.order, key)
	}
}

// Table looks up a table by name, case-insensitively.
func (c *Catalog) Table(name string) (*Table, bool) {
	v, ok := c.tables.Get(strings.ToLower(name))
	if !ok {
		return nil, false
	}
	return v.(*Table), true
}

// Tables returns every table in the catalog in schema-load order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.order))
	for _, key := range c.order {
		v, ok := c.tables.Get(key)
		if !ok {
			continue
		}
		out = append(out, v.(*Table))
	}
	return out
}

func parseTableSQL(name string, rootPage uint32, sqlText string) (*Table, error) {
	if sqlText == "" {
		return nil, fmt.Errorf("table %q has no stored CREATE TABLE text", name)
	}
	stmt, err := tsql.Parse(sqlText)
	if err != nil {
		return nil, err
	}
	create, ok := stmt.(*ast.CreateTableStatement)
	if !ok {
		return nil, fmt.Errorf("table %q's stored SQL is not a CREATE TABLE statement", name)
	}

	table := &Table{
		Name:       name,
		RootPage:   rootPage,
		RowIDAlias: -1,
	}
	for i, c := range create.Columns {
		affinity := value.AffinityFromDeclaredType(c.Type)
		table.Columns = append(table.Columns, Column{
			Name:       c.Name,
			Declared:   c.Type,
			Affinity:   affinity,
			PrimaryKey: c.PrimaryKey,
		})
		// A single-column INTEGER PRIMARY KEY is a rowid alias: its stored
		// serial type is NULL and the executor substitutes the cell's rowid.
		// SQLite only grants this alias to the exact declared type
		// "INTEGER" — INT, BIGINT and other integer-affinity spellings do
		// not qualify, even though they share the same affinity.
		if c.PrimaryKey && strings.EqualFold(c.Type, "INTEGER") && singlePrimaryKey(create.Columns) {
			table.RowIDAlias = i
		}
	}
	return table, nil
}

func primaryKeyColumns(t *Table) []string {
	var cols []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func singlePrimaryKey(cols []ast.ColumnDefinition) bool {
	count := 0
	for _, c := range cols {
		if c.PrimaryKey {
			count++
		}
	}
	return count == 1
}

func parseIndexSQL(name, tblName string, rootPage uint32, sqlText string) (*Index, error) {
	if sqlText == "" {
		// Hidden auto-index: no stored SQL. Its columns are derived from the
		// parent table's PRIMARY KEY declaration by the caller once the
		// table itself is loaded; record it now as an unresolved auto-index.
		return &Index{
			Name:      name,
			TableName: tblName,
			RootPage:  rootPage,
			Auto:      true,
		}, nil
	}

	stmt, err := tsql.Parse(sqlText)
	if err != nil {
		return nil, err
	}
	create, ok := stmt.(*ast.CreateIndexStatement)
	if !ok {
		return nil, fmt.Errorf("index %q's stored SQL is not a CREATE INDEX statement", name)
	}

	return &Index{
		Name:      name,
		TableName: create.TableName,
		RootPage:  rootPage,
		Columns:   create.Columns,
		Unique:    create.Unique,
	}, nil
}
