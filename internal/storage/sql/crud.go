package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ncrq/authguard/internal/storage"
)

var _ storage.Adapter = (*Adapter)(nil)

func encodeRow(model string, data storage.Record) (map[string]interface{}, error) {
	cols := jsonColumns[model]
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if cols[k] {
			buf, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode column %s: %w", k, err)
			}
			out[k] = string(buf)
			continue
		}
		out[k] = v
	}
	return out, nil
}

func decodeRow(model string, raw map[string]interface{}) storage.Record {
	cols := jsonColumns[model]
	out := make(storage.Record, len(raw))
	for k, v := range raw {
		if cols[k] {
			if b, ok := asBytes(v); ok {
				var decoded interface{}
				if json.Unmarshal(b, &decoded) == nil {
					out[k] = decoded
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}

func asBytes(v interface{}) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, true
	case string:
		return []byte(t), true
	default:
		return nil, false
	}
}

func (a *Adapter) Create(ctx context.Context, model string, data storage.Record) (storage.Record, error) {
	table, ok := tableFor(model)
	if !ok {
		return nil, fmt.Errorf("sql: unknown model %q", model)
	}
	row, err := encodeRow(model, data)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := a.db.ExecContext(ctx, a.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sql: insert into %s: %w", table, err)
	}
	// The caller supplies every primary key and default value up front
	// (ids come from authcrypto.NewID, timestamps from the caller's
	// clock), so the inserted Record is simply echoed back rather than
	// re-queried with RETURNING.
	return data, nil
}

func buildWhere(where []storage.Where, startAt int) (string, []interface{}) {
	if len(where) == 0 {
		return "", nil
	}
	var sb strings.Builder
	args := make([]interface{}, 0, len(where))
	for i, w := range where {
		if i > 0 {
			if w.Conn() == storage.ConnOr {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		n := startAt + len(args)
		clause, clauseArgs := whereClause(w, n)
		sb.WriteString(clause)
		args = append(args, clauseArgs...)
	}
	return " WHERE " + sb.String(), args
}

func whereClause(w storage.Where, argN int) (string, []interface{}) {
	switch w.Op() {
	case storage.OpEq:
		return fmt.Sprintf("%s = $%d", w.Field, argN), []interface{}{w.Value}
	case storage.OpNe:
		return fmt.Sprintf("%s <> $%d", w.Field, argN), []interface{}{w.Value}
	case storage.OpLt:
		return fmt.Sprintf("%s < $%d", w.Field, argN), []interface{}{w.Value}
	case storage.OpLte:
		return fmt.Sprintf("%s <= $%d", w.Field, argN), []interface{}{w.Value}
	case storage.OpGt:
		return fmt.Sprintf("%s > $%d", w.Field, argN), []interface{}{w.Value}
	case storage.OpGte:
		return fmt.Sprintf("%s >= $%d", w.Field, argN), []interface{}{w.Value}
	case storage.OpContains:
		return fmt.Sprintf("%s LIKE $%d", w.Field, argN), []interface{}{"%" + fmt.Sprint(w.Value) + "%"}
	case storage.OpStartsWith:
		return fmt.Sprintf("%s LIKE $%d", w.Field, argN), []interface{}{fmt.Sprint(w.Value) + "%"}
	case storage.OpEndsWith:
		return fmt.Sprintf("%s LIKE $%d", w.Field, argN), []interface{}{"%" + fmt.Sprint(w.Value)}
	case storage.OpIn:
		items, ok := w.Value.([]string)
		if !ok || len(items) == 0 {
			return "1 = 0", nil
		}
		placeholders := make([]string, len(items))
		args := make([]interface{}, len(items))
		for i, it := range items {
			placeholders[i] = fmt.Sprintf("$%d", argN+i)
			args[i] = it
		}
		return fmt.Sprintf("%s IN (%s)", w.Field, strings.Join(placeholders, ", ")), args
	default:
		return fmt.Sprintf("%s = $%d", w.Field, argN), []interface{}{w.Value}
	}
}

func (a *Adapter) selectQuery(model string, q storage.Query) (string, []interface{}, error) {
	table, ok := tableFor(model)
	if !ok {
		return "", nil, fmt.Errorf("sql: unknown model %q", model)
	}
	cols := "*"
	if len(q.Select) > 0 {
		cols = strings.Join(q.Select, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	whereSQL, args := buildWhere(q.Where, 1)
	query += whereSQL

	if len(q.SortBy) > 0 {
		terms := make([]string, len(q.SortBy))
		for i, s := range q.SortBy {
			dir := "ASC"
			if s.Direction == storage.SortDesc {
				dir = "DESC"
			}
			terms[i] = fmt.Sprintf("%s %s", s.Field, dir)
		}
		query += " ORDER BY " + strings.Join(terms, ", ")
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}
	return query, args, nil
}

func (a *Adapter) FindOne(ctx context.Context, q storage.Query) (storage.Record, error) {
	q.Limit = 1
	rows, err := a.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0], nil
}

func (a *Adapter) FindMany(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	query, args, err := a.selectQuery(q.Model, q)
	if err != nil {
		return nil, err
	}
	rows, err := a.db.QueryxContext(ctx, a.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sql: select from %s: %w", q.Model, err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		raw := make(map[string]interface{})
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("sql: scan %s row: %w", q.Model, err)
		}
		out = append(out, decodeRow(q.Model, raw))
	}
	return out, rows.Err()
}

func (a *Adapter) Update(ctx context.Context, model string, where []storage.Where, update storage.Record) (storage.Record, error) {
	if _, err := a.UpdateMany(ctx, model, where, update); err != nil {
		return nil, err
	}
	return a.FindOne(ctx, storage.Query{Model: model, Where: where})
}

func (a *Adapter) UpdateMany(ctx context.Context, model string, where []storage.Where, update storage.Record) (int64, error) {
	table, ok := tableFor(model)
	if !ok {
		return 0, fmt.Errorf("sql: unknown model %q", model)
	}
	row, err := encodeRow(model, update)
	if err != nil {
		return 0, err
	}
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args[i] = row[c]
	}
	query := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", "))
	whereSQL, whereArgs := buildWhere(where, len(args)+1)
	query += whereSQL
	args = append(args, whereArgs...)

	res, err := a.db.ExecContext(ctx, a.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("sql: update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, storage.ErrNotFound
	}
	return n, nil
}

func (a *Adapter) Delete(ctx context.Context, model string, where []storage.Where) error {
	n, err := a.DeleteMany(ctx, model, where)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) DeleteMany(ctx context.Context, model string, where []storage.Where) (int64, error) {
	table, ok := tableFor(model)
	if !ok {
		return 0, fmt.Errorf("sql: unknown model %q", model)
	}
	query := fmt.Sprintf("DELETE FROM %s", table)
	whereSQL, args := buildWhere(where, 1)
	query += whereSQL

	res, err := a.db.ExecContext(ctx, a.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("sql: delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (a *Adapter) Count(ctx context.Context, model string, where []storage.Where) (int64, error) {
	table, ok := tableFor(model)
	if !ok {
		return 0, fmt.Errorf("sql: unknown model %q", model)
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	whereSQL, args := buildWhere(where, 1)
	query += whereSQL

	var n int64
	if err := a.db.GetContext(ctx, &n, a.rebind(query), args...); err != nil {
		return 0, fmt.Errorf("sql: count %s: %w", table, err)
	}
	return n, nil
}

// Transaction mirrors the teacher's conn.ExecTx: it opens a *sqlx.Tx
// and runs fn against a tx-scoped Adapter sharing the same dialect.
func (a *Adapter) Transaction(ctx context.Context, fn func(tx storage.Adapter) error) error {
	sqlTx, err := a.raw.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql: begin tx: %w", err)
	}
	txAdapter := &Adapter{raw: a.raw, db: txConn{sqlTx}, dialect: a.dialect}
	if err := fn(txAdapter); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}
