package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/propval"
)

type valuePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresValueRepository stores persist-mode value documents of component
// instances in a jsonb column, one row per instance.
type PostgresValueRepository struct {
	pool  valuePool
	table string
}

var _ propval.ValueRepository = (*PostgresValueRepository)(nil)

func NewPostgresValueRepository(pool valuePool, table string) *PostgresValueRepository {
	return &PostgresValueRepository{pool: pool, table: table}
}

// EnsureTable creates the value table when it does not exist.
func (r *PostgresValueRepository) EnsureTable(ctx context.Context) error {
	table := sanitizeIdentifier(r.table)
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	instance_id UUID PRIMARY KEY,
	component TEXT NOT NULL,
	values_doc JSONB NOT NULL,
	updated_at BIGINT NOT NULL
)`, table)
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return propval.NewStorageError("create value table", err)
	}
	indexQuery := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (component, updated_at DESC)",
		sanitizeIdentifier(r.table+"_component_idx"), table)
	if _, err := r.pool.Exec(ctx, indexQuery); err != nil {
		return propval.NewStorageError("create value table index", err)
	}
	return nil
}

func (r *PostgresValueRepository) Save(ctx context.Context, record *propval.InstanceRecord) error {
	if record == nil || record.ID == uuid.Nil {
		return propval.NewValidationError("instance record requires an id", nil)
	}
	doc, err := json.Marshal(record.Values)
	if err != nil {
		return propval.NewStorageError("encode values document", err).WithDetail("instance", record.ID.String())
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := fmt.Sprintf(`INSERT INTO %s (instance_id, component, values_doc, updated_at)
VALUES ($1, $2, $3::jsonb, $4)
ON CONFLICT (instance_id) DO UPDATE SET
	component = EXCLUDED.component,
	values_doc = EXCLUDED.values_doc,
	updated_at = EXCLUDED.updated_at`, sanitizeIdentifier(r.table))

	if _, err := r.pool.Exec(ctx, query, record.ID, record.Component, string(doc), updatedAt.UnixMilli()); err != nil {
		return propval.NewStorageError("save instance values", err).WithDetail("instance", record.ID.String())
	}
	return nil
}

func (r *PostgresValueRepository) Load(ctx context.Context, id uuid.UUID) (*propval.InstanceRecord, error) {
	query := fmt.Sprintf("SELECT component, values_doc, updated_at FROM %s WHERE instance_id = $1",
		sanitizeIdentifier(r.table))

	var (
		component string
		doc       []byte
		updatedMs int64
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(&component, &doc, &updatedMs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, propval.NewInstanceNotFoundError(id.String())
		}
		return nil, propval.NewStorageError("load instance values", err).WithDetail("instance", id.String())
	}

	values := map[string]any{}
	if err := json.Unmarshal(doc, &values); err != nil {
		return nil, propval.NewStorageError("decode values document", err).WithDetail("instance", id.String())
	}

	return &propval.InstanceRecord{
		ID:        id,
		Component: component,
		Values:    values,
		UpdatedAt: time.UnixMilli(updatedMs),
	}, nil
}

func (r *PostgresValueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE instance_id = $1", sanitizeIdentifier(r.table))
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return propval.NewStorageError("delete instance values", err).WithDetail("instance", id.String())
	}
	if tag.RowsAffected() == 0 {
		return propval.NewInstanceNotFoundError(id.String())
	}
	return nil
}

// List returns instance summaries, most recently updated first. An empty
// component lists every instance.
func (r *PostgresValueRepository) List(ctx context.Context, component string) ([]propval.InstanceSummary, error) {
	query := fmt.Sprintf("SELECT instance_id, component, updated_at FROM %s", sanitizeIdentifier(r.table))
	var args []any
	if component != "" {
		query += " WHERE component = $1"
		args = append(args, component)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, propval.NewStorageError("list instances", err)
	}
	defer rows.Close()

	var summaries []propval.InstanceSummary
	for rows.Next() {
		var (
			s         propval.InstanceSummary
			updatedMs int64
		)
		if err := rows.Scan(&s.ID, &s.Component, &updatedMs); err != nil {
			return nil, propval.NewStorageError("scan instance row", err)
		}
		s.UpdatedAt = time.UnixMilli(updatedMs)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, propval.NewStorageError("iterate instance rows", err)
	}
	return summaries, nil
}
