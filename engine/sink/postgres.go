package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fmf/pipeline/engine/core"
)

// PostgresSink upserts output records into a table, one row per unit.
// table must already exist with at least (unit_id text primary key,
// payload jsonb) columns; relPath is interpreted as the table name
// rather than a filesystem path.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write stages the JSONL payload into a temp table, then upserts it
// into the destination table by unit_id inside one transaction: readers
// see either none or all of this call's rows. Existing rows whose
// unit_id is not in the payload are kept; there is no overwrite mode
// that replaces the table's contents.
func (s *PostgresSink) Write(ctx context.Context, table string, data []byte) error {
	quotedTable := pgx.Identifier{table}.Sanitize()
	quotedStaging := pgx.Identifier{table + "_staging"}.Sanitize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.NewError(core.ErrExport, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (unit_id text PRIMARY KEY, payload jsonb) ON COMMIT DROP", quotedStaging,
	)); err != nil {
		return core.NewError(core.ErrExport, "create staging table", err)
	}

	rows, err := parseJSONLRows(data)
	if err != nil {
		return core.NewError(core.ErrExport, "parse jsonl payload", err)
	}
	for _, row := range rows {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (unit_id, payload) VALUES ($1, $2)", quotedStaging),
			row.unitID, row.payload,
		); err != nil {
			return core.NewError(core.ErrExport, "insert into staging table", err)
		}
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (unit_id, payload)
		 SELECT unit_id, payload FROM %s
		 ON CONFLICT (unit_id) DO UPDATE SET payload = EXCLUDED.payload`,
		quotedTable, quotedStaging,
	)); err != nil {
		return core.NewError(core.ErrExport, "upsert from staging table", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.NewError(core.ErrExport, "commit upsert", err)
	}
	return nil
}

// stagedRow is one parsed JSONL line destined for the staging table.
type stagedRow struct {
	unitID  string
	payload []byte
}

func parseJSONLRows(data []byte) ([]stagedRow, error) {
	return decodeJSONLUnitRows(data)
}
