package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/stewardbot/steward/internal/store"
)

// defaultSearchColumns are matched by the search action when the descriptor
// names no columns of its own.
var defaultSearchColumns = []string{"title", "description", "content"}

// Compiler turns a declarative Descriptor into SQL against the backing store
// and executes it. Failures are ValidationErrors or
// UnsupportedOperationErrors; neither is ever retried here.
type Compiler struct {
	db *store.DB
}

// NewCompiler creates a Compiler over the given store.
func NewCompiler(db *store.DB) *Compiler {
	return &Compiler{db: db}
}

// Run compiles and executes one descriptor. Select-shaped actions return
// []map[string]any; mutations return a count map.
func (c *Compiler) Run(ctx context.Context, d *Descriptor) (any, error) {
	if err := validIdent(d.Table); err != nil {
		return nil, err
	}
	switch d.Action {
	case ActionSelect:
		return c.runSelect(ctx, d)
	case ActionInsert:
		return c.runInsert(ctx, d, false)
	case ActionUpsert:
		return c.runInsert(ctx, d, true)
	case ActionUpdate:
		return c.runUpdate(ctx, d)
	case ActionDelete:
		return c.runDelete(ctx, d)
	case ActionJoin:
		return c.runJoin(ctx, d)
	case ActionSearch:
		return c.runSearch(ctx, d)
	}
	return nil, unsupportedf("action %q", d.Action)
}

func (c *Compiler) runSelect(ctx context.Context, d *Descriptor) (any, error) {
	cols, err := projection(d.Columns)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + cols + " FROM " + d.Table

	where, args, err := whereClause(d.Filters, "")
	if err != nil {
		return nil, err
	}
	if where != "" {
		q += " WHERE " + where
	}

	order, err := orderClause(d.Order)
	if err != nil {
		return nil, err
	}
	q += order

	q, args = paginate(q, args, d.Pagination)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", d.Table, err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func (c *Compiler) runInsert(ctx context.Context, d *Descriptor, upsert bool) (any, error) {
	records, err := dataRecords(d.Data)
	if err != nil {
		return nil, err
	}

	conflict := d.OnConflict
	if conflict == "" {
		conflict = "id"
	}
	if err := validIdent(conflict); err != nil {
		return nil, err
	}

	inserted := []map[string]any{}
	for _, rec := range records {
		cols := make([]string, 0, len(rec))
		for col := range rec {
			if err := validIdent(col); err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		sort.Strings(cols)

		args := make([]any, 0, len(cols))
		placeholders := make([]string, 0, len(cols))
		for _, col := range cols {
			args = append(args, rec[col])
			placeholders = append(placeholders, "?")
		}

		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if upsert {
			sets := make([]string, 0, len(cols))
			for _, col := range cols {
				if col == conflict {
					continue
				}
				sets = append(sets, col+" = excluded."+col)
			}
			if len(sets) == 0 {
				q += fmt.Sprintf(" ON CONFLICT(%s) DO NOTHING", conflict)
			} else {
				q += fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", conflict, strings.Join(sets, ", "))
			}
		}
		q += " RETURNING *"

		rows, err := c.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("%s into %s: %w", d.Action, d.Table, err)
		}
		out, err := rowsToMaps(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, out...)
	}
	return inserted, nil
}

func (c *Compiler) runUpdate(ctx context.Context, d *Descriptor) (any, error) {
	if len(d.Filters) == 0 {
		return nil, validationf("update requires at least one filter")
	}
	records, err := dataRecords(d.Data)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, validationf("update requires a single data object")
	}
	rec := records[0]

	cols := make([]string, 0, len(rec))
	for col := range rec {
		if err := validIdent(col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, rec[col])
	}

	where, whereArgs, err := whereClause(d.Filters, "")
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", d.Table, strings.Join(sets, ", "), where)
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", d.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return map[string]any{"updated": n}, nil
}

func (c *Compiler) runDelete(ctx context.Context, d *Descriptor) (any, error) {
	if len(d.Filters) == 0 {
		return nil, validationf("delete requires at least one filter")
	}
	where, args, err := whereClause(d.Filters, "")
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Table, where)
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", d.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": n}, nil
}

func (c *Compiler) runJoin(ctx context.Context, d *Descriptor) (any, error) {
	if len(d.Join) == 0 {
		return nil, validationf("join requires at least one join spec")
	}

	proj := make([]string, 0, 4)
	if d.Columns == "" || d.Columns == "*" {
		proj = append(proj, d.Table+".*")
	} else {
		baseCols, err := splitColumns(d.Columns)
		if err != nil {
			return nil, err
		}
		for _, col := range baseCols {
			proj = append(proj, d.Table+"."+col)
		}
	}

	joins := make([]string, 0, len(d.Join))
	for _, spec := range d.Join {
		if err := validIdent(spec.Table); err != nil {
			return nil, err
		}
		if err := validIdent(spec.On.Local); err != nil {
			return nil, err
		}
		if err := validIdent(spec.On.Foreign); err != nil {
			return nil, err
		}

		jcols := spec.Columns
		if jcols == "" {
			jcols = "*"
		}
		if jcols == "*" {
			if spec.ColumnPrefix != "" {
				// Wildcard columns cannot be renamed individually.
				return nil, unsupportedf("column prefix with wildcard projection on %s", spec.Table)
			}
			proj = append(proj, spec.Table+".*")
		} else {
			cols, err := splitColumns(jcols)
			if err != nil {
				return nil, err
			}
			for _, col := range cols {
				if spec.ColumnPrefix != "" {
					alias := spec.ColumnPrefix + col
					if err := validIdent(alias); err != nil {
						return nil, err
					}
					proj = append(proj, fmt.Sprintf("%s.%s AS %s", spec.Table, col, alias))
				} else {
					proj = append(proj, spec.Table+"."+col)
				}
			}
		}

		local := d.Table + "." + spec.On.Local
		foreign := spec.Table + "." + spec.On.Foreign
		switch spec.Type {
		case JoinInner:
			joins = append(joins, fmt.Sprintf("JOIN %s ON %s = %s", spec.Table, local, foreign))
		case JoinLeft:
			// Not a true left join: unmatched foreign-side rows are not
			// preserved. This reproduces the documented store behavior.
			joins = append(joins, fmt.Sprintf("JOIN %s ON (%s = %s OR %s IS NULL)", spec.Table, local, foreign, local))
		default:
			return nil, unsupportedf("join type %q", spec.Type)
		}
	}

	q := "SELECT " + strings.Join(proj, ", ") + " FROM " + d.Table + " " + strings.Join(joins, " ")

	where, args, err := whereClause(d.Filters, d.Table)
	if err != nil {
		return nil, err
	}
	if where != "" {
		q += " WHERE " + where
	}

	order, err := orderClause(d.Order)
	if err != nil {
		return nil, err
	}
	q += order
	q, args = paginate(q, args, d.Pagination)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("join on %s: %w", d.Table, err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func (c *Compiler) runSearch(ctx context.Context, d *Descriptor) (any, error) {
	if strings.TrimSpace(d.SearchTerm) == "" {
		return nil, validationf("search term is required")
	}
	cols := d.SearchColumns
	if len(cols) == 0 {
		cols = defaultSearchColumns
	}

	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		if err := validIdent(col); err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("instr(lower(%s), lower(?)) > 0", col))
		args = append(args, d.SearchTerm)
	}

	proj, err := projection(d.Columns)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + proj + " FROM " + d.Table + " WHERE (" + strings.Join(conds, " OR ") + ")"

	if len(d.Filters) > 0 {
		where, whereArgs, err := whereClause(d.Filters, "")
		if err != nil {
			return nil, err
		}
		q += " AND " + where
		args = append(args, whereArgs...)
	}

	order, err := orderClause(d.Order)
	if err != nil {
		return nil, err
	}
	q += order
	q, args = paginate(q, args, d.Pagination)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", d.Table, err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// whereClause renders the conjunctive filter list. qualifier, when non-empty,
// prefixes every column (used by join, where bare names are ambiguous).
func whereClause(filters []FilterClause, qualifier string) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		if err := validIdent(f.Column); err != nil {
			return "", nil, err
		}
		col := f.Column
		if qualifier != "" {
			col = qualifier + "." + col
		}
		switch f.Operator {
		case OpEq:
			conds = append(conds, col+" = ?")
			args = append(args, f.Value)
		case OpNeq:
			conds = append(conds, col+" != ?")
			args = append(args, f.Value)
		case OpGt:
			conds = append(conds, col+" > ?")
			args = append(args, f.Value)
		case OpLt:
			conds = append(conds, col+" < ?")
			args = append(args, f.Value)
		case OpGte:
			conds = append(conds, col+" >= ?")
			args = append(args, f.Value)
		case OpLte:
			conds = append(conds, col+" <= ?")
			args = append(args, f.Value)
		case OpLike:
			conds = append(conds, col+" LIKE ?")
			args = append(args, f.Value)
		case OpILike:
			conds = append(conds, "lower("+col+") LIKE lower(?)")
			args = append(args, f.Value)
		case OpIn:
			vals, ok := f.Value.([]any)
			if !ok {
				return "", nil, validationf("in filter on %s requires an array value", f.Column)
			}
			if len(vals) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			conds = append(conds, col+" IN (?"+strings.Repeat(", ?", len(vals)-1)+")")
			args = append(args, vals...)
		case OpContains:
			conds = append(conds, "instr("+col+", ?) > 0")
			args = append(args, f.Value)
		case OpRange:
			vals, ok := f.Value.([]any)
			if !ok || len(vals) != 2 {
				return "", nil, validationf("range filter on %s requires a two-element array value", f.Column)
			}
			conds = append(conds, col+" BETWEEN ? AND ?")
			args = append(args, vals[0], vals[1])
		default:
			return "", nil, unsupportedf("filter operator %q", f.Operator)
		}
	}
	return strings.Join(conds, " AND "), args, nil
}

// orderClause renders ORDER BY terms in the listed order (stable precedence).
func orderClause(order []OrderClause) (string, error) {
	if len(order) == 0 {
		return "", nil
	}
	terms := make([]string, 0, len(order))
	for _, o := range order {
		if err := validIdent(o.Column); err != nil {
			return "", err
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		terms = append(terms, o.Column+" "+dir)
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

// paginate appends LIMIT/OFFSET after ordering. A non-positive limit with an
// offset uses LIMIT -1, which SQLite treats as unbounded.
func paginate(q string, args []any, p *Pagination) (string, []any) {
	if p == nil {
		return q, args
	}
	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	return q + " LIMIT ? OFFSET ?", append(args, limit, p.Offset)
}

// projection validates a comma-separated column list; empty means "*".
func projection(columns string) (string, error) {
	if columns == "" || columns == "*" {
		return "*", nil
	}
	cols, err := splitColumns(columns)
	if err != nil {
		return "", err
	}
	return strings.Join(cols, ", "), nil
}

func splitColumns(columns string) ([]string, error) {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		col := strings.TrimSpace(p)
		if err := validIdent(col); err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// dataRecords normalizes the descriptor's data field into a record list.
func dataRecords(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 {
		return nil, validationf("data is required")
	}
	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err == nil {
		if len(many) == 0 {
			return nil, validationf("data must not be empty")
		}
		return many, nil
	}
	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, validationf("data must be an object or an array of objects")
	}
	if len(one) == 0 {
		return nil, validationf("data must not be empty")
	}
	return []map[string]any{one}, nil
}

// rowsToMaps scans a result set into generic records, decoding []byte cells
// to strings for JSON friendliness.
func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[col] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
