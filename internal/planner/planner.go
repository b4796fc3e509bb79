// Package planner turns a parsed SELECT statement into either an index
// seek or a full table scan and returns the matching rows, sorted, sliced
// and projected, as one materialized Result. Grounded on the teacher's
// now-retired engine/select.go executor, whose separation of filtering
// from projection it keeps, but run as a filter-then-buffer-then-sort-
// then-slice-then-project pass instead of that file's channel-based
// streaming shape, since ORDER BY (spec §4.6) requires the full result set in memory
// before it can be sliced by LIMIT/OFFSET anyway.
package planner

import (
	"context"
	"sort"
	"strings"

	"github.com/joeandaverde/litescan/internal/btree"
	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/eval"
	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/schema"
	"github.com/joeandaverde/litescan/internal/storage"
	"github.com/joeandaverde/litescan/internal/value"
	"github.com/joeandaverde/litescan/tsql/ast"
)

// Result is a materialized query result: column names and their rows, in
// final (post sort/limit) order.
type Result struct {
	Columns []string
	Rows    [][]value.Value
}

// matchedRow is a row that has passed the WHERE filter, carrying its full
// decoded column values (not yet projected) so ORDER BY can reference a
// column the SELECT list doesn't return.
type matchedRow struct {
	rowID  int64
	values []value.Value
}

// ExecuteSelect runs a parsed, single-table SELECT against the database
// behind p, using cat to resolve the table and any usable index.
func ExecuteSelect(ctx context.Context, p pager.Pager, cat *schema.Catalog, stmt *ast.SelectStatement) (*Result, error) {
	if len(stmt.From) != 1 {
		return nil, &errs.UnsupportedSQLError{Msg: "exactly one table in FROM is supported"}
	}
	tableName := stmt.From[0].Name
	table, ok := cat.Table(tableName)
	if !ok {
		return nil, &errs.TableNotFoundError{Name: tableName}
	}

	projected, err := resolveProjection(table, stmt.Columns)
	if err != nil {
		return nil, err
	}
	if err := resolveOrderByColumns(table, stmt.OrderBy); err != nil {
		return nil, err
	}

	idx, prefix := choosePlan(table, stmt.Filter)

	var matches []matchedRow
	if idx != nil {
		matches, err = runIndexSeek(ctx, p, table, idx, prefix, stmt.Filter)
	} else {
		matches, err = runTableScan(ctx, p, table, stmt.Filter)
	}
	if err != nil {
		return nil, err
	}

	if len(stmt.OrderBy) > 0 {
		sortMatches(table, matches, stmt.OrderBy)
	}

	matches = applyLimitOffset(matches, stmt.Offset, stmt.Limit)

	rows := make([][]value.Value, len(matches))
	for i, m := range matches {
		rows[i] = project(table, m.values, projected)
	}

	return &Result{Columns: projected, Rows: rows}, nil
}

// CountRows counts a table's rows without decoding any record, per spec
// §4.6's count_table_rows.
func CountRows(ctx context.Context, p pager.Pager, cat *schema.Catalog, tableName string) (int64, error) {
	table, ok := cat.Table(tableName)
	if !ok {
		return 0, &errs.TableNotFoundError{Name: tableName}
	}
	return btree.CountTableRows(ctx, p, table.RootPage)
}

func resolveProjection(table *schema.Table, requested []string) ([]string, error) {
	if len(requested) == 1 && requested[0] == "*" {
		names := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			names[i] = c.Name
		}
		return names, nil
	}
	for _, name := range requested {
		if table.ColumnIndex(name) < 0 {
			return nil, &errs.ColumnNotFoundError{Table: table.Name, Column: name}
		}
	}
	return requested, nil
}

func resolveOrderByColumns(table *schema.Table, terms []ast.OrderingTerm) error {
	for _, t := range terms {
		if table.ColumnIndex(t.Column) < 0 {
			return &errs.ColumnNotFoundError{Table: table.Name, Column: t.Column}
		}
	}
	return nil
}

func project(table *schema.Table, values []value.Value, columns []string) []value.Value {
	out := make([]value.Value, len(columns))
	for i, name := range columns {
		ci := table.ColumnIndex(name)
		if ci >= 0 && ci < len(values) {
			out[i] = values[ci]
		} else {
			out[i] = value.NewNull()
		}
	}
	return out
}

func sortMatches(table *schema.Table, matches []matchedRow, terms []ast.OrderingTerm) {
	sort.SliceStable(matches, func(i, j int) bool {
		for _, term := range terms {
			ci := table.ColumnIndex(term.Column)
			cmp := value.Compare(matches[i].values[ci], matches[j].values[ci])
			if term.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

func applyLimitOffset(matches []matchedRow, offset, limit *int64) []matchedRow {
	if offset != nil {
		o := *offset
		if o < 0 {
			o = 0
		}
		if o >= int64(len(matches)) {
			return nil
		}
		matches = matches[o:]
	}
	if limit != nil && *limit >= 0 && *limit < int64(len(matches)) {
		matches = matches[:*limit]
	}
	return matches
}

func decodeRow(table *schema.Table, rowID int64, payload []byte) ([]value.Value, error) {
	values, err := storage.DecodeRecord(payload)
	if err != nil {
		return nil, err
	}
	if table.RowIDAlias >= 0 && table.RowIDAlias < len(values) && values[table.RowIDAlias].IsNull() {
		values[table.RowIDAlias] = value.NewInteger(rowID)
	}
	return values, nil
}

func runTableScan(ctx context.Context, p pager.Pager, table *schema.Table, filter ast.Expression) ([]matchedRow, error) {
	cur, err := btree.NewCursor(ctx, p, table.RootPage)
	if err != nil {
		return nil, err
	}

	var matches []matchedRow
	for {
		cell, ok, err := cur.NextTableCell(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		values, err := decodeRow(table, cell.RowID, cell.Payload)
		if err != nil {
			return nil, err
		}

		if filter != nil {
			tri, err := eval.Eval(filter, lookupFor(table, values))
			if err != nil {
				return nil, err
			}
			if !tri.Bool() {
				continue
			}
		}

		matches = append(matches, matchedRow{rowID: cell.RowID, values: values})
	}
	return matches, nil
}

func runIndexSeek(ctx context.Context, p pager.Pager, table *schema.Table, idx *schema.Index, prefix []value.Value, filter ast.Expression) ([]matchedRow, error) {
	cur, err := btree.NewCursor(ctx, p, idx.RootPage)
	if err != nil {
		return nil, err
	}

	var rowIDs []int64
	for {
		cell, ok, err := cur.NextIndexCell(ctx, len(idx.Columns))
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		cmp := btree.CompareKeys(cell.Key[:len(prefix)], prefix)
		if cmp < 0 {
			continue
		}
		if cmp > 0 {
			// Index entries are key-ordered: once the prefix sorts past
			// the target, no later entry can match it either.
			break
		}
		rowIDs = append(rowIDs, cell.RowID)
	}
	btree.SortRowIDs(rowIDs)

	var matches []matchedRow
	for _, rowID := range rowIDs {
		cell, ok, err := btree.SeekRowID(ctx, p, table.RootPage, rowID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		values, err := decodeRow(table, cell.RowID, cell.Payload)
		if err != nil {
			return nil, err
		}

		// The index may only cover a prefix of the WHERE clause, so the
		// full predicate is still evaluated against each candidate row.
		if filter != nil {
			tri, err := eval.Eval(filter, lookupFor(table, values))
			if err != nil {
				return nil, err
			}
			if !tri.Bool() {
				continue
			}
		}

		matches = append(matches, matchedRow{rowID: cell.RowID, values: values})
	}
	return matches, nil
}

func lookupFor(table *schema.Table, values []value.Value) eval.Lookup {
	return func(name string) (value.Value, bool) {
		i := table.ColumnIndex(name)
		if i < 0 || i >= len(values) {
			return value.Value{}, false
		}
		return values[i], true
	}
}

// choosePlan inspects the WHERE clause for a conjunction of equality
// predicates and picks the index whose declared columns share the longest
// matching prefix with those predicates, per spec §4.6. A disjunction
// anywhere in the filter disables index use entirely, since an index can
// only accelerate an AND'd set of constraints it fully covers a prefix of.
func choosePlan(table *schema.Table, filter ast.Expression) (*schema.Index, []value.Value) {
	eqs := conjunctiveEqualities(filter)
	if eqs == nil {
		return nil, nil
	}

	var best *schema.Index
	bestLen := 0
	for _, idx := range table.Indexes {
		n := 0
		for _, col := range idx.Columns {
			if _, ok := eqs[strings.ToLower(col)]; ok {
				n++
			} else {
				break
			}
		}
		if n == 0 {
			continue
		}
		if n > bestLen || (n == bestLen && best != nil && idx.Name < best.Name) {
			best = idx
			bestLen = n
		}
	}
	if best == nil {
		return nil, nil
	}

	prefix := make([]value.Value, bestLen)
	for i := 0; i < bestLen; i++ {
		v, err := eval.LiteralValue(eqs[strings.ToLower(best.Columns[i])])
		if err != nil {
			return nil, nil
		}
		prefix[i] = v
	}
	return best, prefix
}

// conjunctiveEqualities collects column=literal equalities joined by AND
// at any depth of the filter tree. It returns nil if the filter contains
// an OR anywhere, since that disjunction means no single index prefix can
// stand in for the whole predicate.
func conjunctiveEqualities(filter ast.Expression) map[string]ast.Expression {
	if filter == nil {
		return nil
	}
	if containsOr(filter) {
		return nil
	}
	eqs := map[string]ast.Expression{}
	collectEqualities(filter, eqs)
	return eqs
}

func containsOr(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.BinaryOperation:
		if e.Operator == "OR" {
			return true
		}
		return containsOr(e.Left) || containsOr(e.Right)
	case *ast.NotExpression:
		return containsOr(e.Expr)
	default:
		return false
	}
}

func collectEqualities(expr ast.Expression, eqs map[string]ast.Expression) {
	op, ok := expr.(*ast.BinaryOperation)
	if !ok {
		return
	}
	if op.Operator == "AND" {
		collectEqualities(op.Left, eqs)
		collectEqualities(op.Right, eqs)
		return
	}
	if op.Operator != "=" {
		return
	}
	if ident, ok := op.Left.(*ast.Ident); ok {
		if _, ok := op.Right.(*ast.BasicLiteral); ok {
			eqs[strings.ToLower(ident.Value)] = op.Right
		}
		return
	}
	if ident, ok := op.Right.(*ast.Ident); ok {
		if _, ok := op.Left.(*ast.BasicLiteral); ok {
			eqs[strings.ToLower(ident.Value)] = op.Left
		}
	}
}
