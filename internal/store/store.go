// Package store persists configurations and extraction records in SQLite.
//
// Access goes through a small generic contract (Insert, Select, Update over
// named tables). Table and column names are checked against a fixed schema
// before any SQL is built. Columns ending in _json hold JSON text and are
// decoded on read.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
)

// Table names.
const (
	Configurations   = "configurations"
	ExtractedTables  = "extracted_tables"
	ExtractedDetails = "extracted_details"
)

// Record is one row keyed by column name.
type Record map[string]any

// ID returns the record id.
func (r Record) ID() string {
	s, _ := r["id"].(string)
	return s
}

type tableDef struct {
	columns    []string
	hasUpdated bool
}

var schema = map[string]tableDef{
	Configurations:   {columns: []string{"name", "template_json"}, hasUpdated: true},
	ExtractedTables:  {columns: []string{"filename", "data_key", "pdf_key", "extracted_json"}},
	ExtractedDetails: {columns: []string{"filename", "pdf_key", "data_key", "extracted_json"}},
}

// fixed width so text order matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := schema[name]
		cols := []string{"id TEXT PRIMARY KEY", "created_at TEXT NOT NULL"}
		if def.hasUpdated {
			cols = append(cols, "updated_at TEXT NOT NULL")
		}
		for _, c := range def.columns {
			cols = append(cols, c+" TEXT")
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(cols, ", "))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created ON %s (created_at)", name, name)
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
	}
	return nil
}

func lookup(table string) (tableDef, error) {
	def, ok := schema[table]
	if !ok {
		return tableDef{}, fmt.Errorf("%q: %w", table, ErrUnknownTable)
	}
	return def, nil
}

func (d tableDef) has(col string) bool {
	for _, c := range d.columns {
		if c == col {
			return true
		}
	}
	return false
}

// allColumns lists every column in SELECT order.
func (d tableDef) allColumns() []string {
	cols := []string{"id", "created_at"}
	if d.hasUpdated {
		cols = append(cols, "updated_at")
	}
	return append(cols, d.columns...)
}

func isJSONColumn(col string) bool {
	return strings.HasSuffix(col, "_json")
}

// encode converts a record value to its stored form.
func encode(col string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if isJSONColumn(col) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", col, err)
		}
		return string(b), nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return fmt.Sprint(v), nil
}

// sortedFields validates the record's columns and returns them in a stable order.
func sortedFields(def tableDef, rec map[string]any) ([]string, error) {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		if !def.has(col) {
			return nil, fmt.Errorf("%q: %w", col, ErrUnknownColumn)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// Insert stores rec in table and returns it with id and timestamps filled.
func (s *Store) Insert(ctx context.Context, table string, rec map[string]any) (Record, error) {
	def, err := lookup(table)
	if err != nil {
		return nil, err
	}
	cols, err := sortedFields(def, rec)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := s.now().UTC().Format(timeLayout)
	names := []string{"id", "created_at"}
	args := []any{id, now}
	if def.hasUpdated {
		names = append(names, "updated_at")
		args = append(args, now)
	}
	for _, col := range cols {
		v, err := encode(col, rec[col])
		if err != nil {
			return nil, err
		}
		names = append(names, col)
		args = append(args, v)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders)
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return s.Get(ctx, table, id)
}

// Select returns the rows of table whose columns equal every filter value,
// newest first. A nil filter selects all rows. Filtering on a _json column
// compares its stored JSON text.
func (s *Store) Select(ctx context.Context, table string, filter map[string]any) ([]Record, error) {
	def, err := lookup(table)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	keys := make([]string, 0, len(filter))
	for col := range filter {
		if col != "id" && !def.has(col) {
			return nil, fmt.Errorf("%q: %w", col, ErrUnknownColumn)
		}
		keys = append(keys, col)
	}
	sort.Strings(keys)
	for _, col := range keys {
		v, err := encode(col, filter[col])
		if err != nil {
			return nil, err
		}
		if v == nil {
			where = append(where, col+" IS NULL")
			continue
		}
		where = append(where, col+" = ?")
		args = append(args, v)
	}

	cols := def.allColumns()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[col] = decode(col, vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func decode(col string, v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	if isJSONColumn(col) {
		var out any
		if err := json.Unmarshal([]byte(v.String), &out); err != nil {
			return v.String
		}
		return out
	}
	return v.String
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, table, id string) (Record, error) {
	recs, err := s.Select(ctx, table, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return recs[0], nil
}

// Update overwrites the given columns of the record with id and returns
// the stored result.
func (s *Store) Update(ctx context.Context, table, id string, rec map[string]any) (Record, error) {
	def, err := lookup(table)
	if err != nil {
		return nil, err
	}
	cols, err := sortedFields(def, rec)
	if err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	if def.hasUpdated {
		sets = append(sets, "updated_at = ?")
		args = append(args, s.now().UTC().Format(timeLayout))
	}
	for _, col := range cols {
		v, err := encode(col, rec[col])
		if err != nil {
			return nil, err
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return s.Get(ctx, table, id)
	}
	args = append(args, id)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return s.Get(ctx, table, id)
}
