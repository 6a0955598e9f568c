// Package postgres provides a docstore.Store backed by a single JSONB
// table. Every collection shares the table; documents are addressed by
// (collection, serial id) and queried through translated filter trees.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

// DBTX allows either a pool or a transaction to back the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements docstore.Store on PostgreSQL.
type Store struct {
	db DBTX
}

// New creates a store on an existing connection or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a store on a pgx connection pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Migrate creates the documents table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			doc JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection)`,
		`CREATE INDEX IF NOT EXISTS documents_doc_idx ON documents USING GIN (doc)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate documents table: %w", err)
		}
	}
	return nil
}

// Collection returns a collection view over the shared table.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{db: s.db, name: name}
}

type collection struct {
	db   DBTX
	name string
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (*docstore.FindResult, error) {
	where, args, err := buildWhere(filter, []any{c.name})
	if err != nil {
		return nil, err
	}

	countQuery := "SELECT COUNT(*) FROM documents WHERE collection = $1" + where
	var total int
	if err := c.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	query := "SELECT doc FROM documents WHERE collection = $1" + where + buildOrderBy(opts.Sort)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc docstore.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return &docstore.FindResult{Docs: docs, Total: total}, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	result, err := c.Find(ctx, filter, docstore.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(result.Docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return result.Docs[0], nil
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if _, err := c.db.Exec(ctx, "INSERT INTO documents (collection, doc) VALUES ($1, $2)", c.name, raw); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (c *collection) UpdateMany(ctx context.Context, filter docstore.Filter, set docstore.Document) (int, error) {
	where, args, err := buildWhere(filter, []any{c.name})
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return 0, fmt.Errorf("encode update: %w", err)
	}
	args = append(args, raw)
	query := fmt.Sprintf("UPDATE documents SET doc = doc || $%d WHERE collection = $1%s", len(args), where)
	tag, err := c.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (c *collection) DeleteMany(ctx context.Context, filter docstore.Filter) (int, error) {
	where, args, err := buildWhere(filter, []any{c.name})
	if err != nil {
		return 0, err
	}
	tag, err := c.db.Exec(ctx, "DELETE FROM documents WHERE collection = $1"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Filter translation

func buildWhere(filter docstore.Filter, args []any) (string, []any, error) {
	if len(filter) == 0 {
		return "", args, nil
	}
	clause, args, err := buildCondition(filter, args)
	if err != nil {
		return "", nil, err
	}
	return " AND " + clause, args, nil
}

func buildCondition(filter map[string]any, args []any) (string, []any, error) {
	var clauses []string
	var err error
	for key, condition := range filter {
		var clause string
		switch key {
		case "$and", "$or":
			items, ok := condition.([]any)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s expects a list", docstore.ErrUnsupportedOperator, key)
			}
			var subs []string
			for _, item := range items {
				sub, _ := item.(map[string]any)
				var subClause string
				subClause, args, err = buildCondition(sub, args)
				if err != nil {
					return "", nil, err
				}
				subs = append(subs, subClause)
			}
			joiner := " AND "
			if key == "$or" {
				joiner = " OR "
			}
			clause = "(" + strings.Join(subs, joiner) + ")"
		default:
			if strings.HasPrefix(key, "$") {
				return "", nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOperator, key)
			}
			clause, args, err = buildFieldCondition(key, condition, args)
			if err != nil {
				return "", nil, err
			}
		}
		clauses = append(clauses, clause)
	}
	return "(" + strings.Join(clauses, " AND ") + ")", args, nil
}

func buildFieldCondition(field string, condition any, args []any) (string, []any, error) {
	ops, isOps := condition.(map[string]any)
	if !isOps || !hasOperatorKey(ops) {
		return buildComparison(field, "$eq", condition, args)
	}
	var clauses []string
	var err error
	for op, operand := range ops {
		if op == "$options" {
			continue
		}
		var clause string
		if op == "$regex" {
			options, _ := ops["$options"].(string)
			clause, args, err = buildRegex(field, operand, options, args)
		} else if op == "$not" {
			clause, args, err = buildNot(field, operand, args)
		} else {
			clause, args, err = buildComparison(field, op, operand, args)
		}
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}
	return "(" + strings.Join(clauses, " AND ") + ")", args, nil
}

func buildNot(field string, operand any, args []any) (string, []any, error) {
	sub, ok := operand.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("%w: $not expects an operator object", docstore.ErrUnsupportedOperator)
	}
	clause, args, err := buildFieldCondition(field, sub, args)
	if err != nil {
		return "", nil, err
	}
	// NULL-safe negation: documents missing the field must still match.
	return "(NOT COALESCE(" + clause + ", FALSE))", args, nil
}

func buildRegex(field string, operand any, options string, args []any) (string, []any, error) {
	pattern, ok := operand.(string)
	if !ok || pattern == "" {
		return "", nil, fmt.Errorf("%w: $regex expects a pattern", docstore.ErrUnsupportedOperator)
	}
	operator := "~"
	if strings.Contains(options, "i") {
		operator = "~*"
	}
	args = append(args, pattern)
	return fmt.Sprintf("%s %s $%d", fieldText(field), operator, len(args)), args, nil
}

func buildComparison(field, op string, operand any, args []any) (string, []any, error) {
	accessor := fieldText(field)
	switch op {
	case "$ne":
		// Negated equality, NULL-safe: documents missing the field match.
		clause, args, err := buildComparison(field, "$eq", operand, args)
		if err != nil {
			return "", nil, err
		}
		return "NOT COALESCE(" + clause + ", FALSE)", args, nil
	case "$eq", "$gt", "$gte", "$lt", "$lte":
		sqlOp := map[string]string{
			"$eq": "=", "$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<=",
		}[op]
		if num, ok := asNumber(operand); ok {
			args = append(args, num)
			return fmt.Sprintf("(%s)::numeric %s $%d", accessor, sqlOp, len(args)), args, nil
		}
		if b, ok := operand.(bool); ok {
			args = append(args, fmt.Sprintf("%t", b))
			return fmt.Sprintf("%s %s $%d", accessor, sqlOp, len(args)), args, nil
		}
		args = append(args, fmt.Sprint(operand))
		return fmt.Sprintf("%s %s $%d", accessor, sqlOp, len(args)), args, nil
	case "$in", "$nin":
		items, ok := operand.([]any)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s expects a list", docstore.ErrUnsupportedOperator, op)
		}
		values := make([]string, len(items))
		for i, item := range items {
			values[i] = fmt.Sprint(item)
		}
		args = append(args, values)
		clause := fmt.Sprintf("%s = ANY($%d)", accessor, len(args))
		if op == "$nin" {
			clause = "NOT COALESCE(" + clause + ", FALSE)"
		}
		return clause, args, nil
	case "$exists":
		want, _ := operand.(bool)
		if want {
			return fieldJSON(field) + " IS NOT NULL", args, nil
		}
		return fieldJSON(field) + " IS NULL", args, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOperator, op)
	}
}

func buildOrderBy(fields []docstore.Sort) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	for i, field := range fields {
		direction := "ASC"
		if field.Desc {
			direction = "DESC"
		}
		parts[i] = fieldText(field.Field) + " " + direction
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// fieldText yields the text accessor for a dotted field path.
func fieldText(field string) string {
	return "doc #>> '{" + escapePath(field) + "}'"
}

// fieldJSON yields the jsonb accessor for a dotted field path.
func fieldJSON(field string) string {
	return "doc #> '{" + escapePath(field) + "}'"
}

func escapePath(field string) string {
	parts := strings.Split(field, ".")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(part, "'", "''")
	}
	return strings.Join(parts, ",")
}

func hasOperatorKey(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
