package history

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// queries holds the statements of the history tables.
type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

func (q *queries) withTx(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

const insertRun = `INSERT INTO runs (
    id, trigger_type, dry_run, started_at, finished_at, duration_ms,
    added, upgraded, planned, processed, skipped, failed,
    cap_reached, cancelled, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *queries) insertRun(ctx context.Context, r *Run) error {
	_, err := q.db.ExecContext(ctx, insertRun,
		r.ID, r.Trigger, boolInt(r.DryRun), formatTime(r.StartedAt), formatTime(r.FinishedAt), r.DurationMs,
		r.Added, r.Upgraded, r.Planned, r.Processed, r.Skipped, r.Failed,
		boolInt(r.CapReached), boolInt(r.Cancelled), r.Error,
	)
	return err
}

const insertAction = `INSERT INTO run_actions (
    run_id, external_id, media_type, media_title, media_year, state, action,
    release_title, hash, size_bytes, score, torrent_id, replaced_id,
    availability_assumed, dry_run, reason, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *queries) insertAction(ctx context.Context, a *Action) error {
	_, err := q.db.ExecContext(ctx, insertAction,
		a.RunID, a.ExternalID, a.MediaType, a.MediaTitle, a.MediaYear, a.State, a.Action,
		a.Release, a.Hash, int64(a.SizeBytes), a.Score, a.TorrentID, a.ReplacedID,
		boolInt(a.AvailabilityAssumed), boolInt(a.DryRun), a.Reason, a.Error,
	)
	return err
}

const runColumns = `id, trigger_type, dry_run, started_at, finished_at, duration_ms,
    added, upgraded, planned, processed, skipped, failed, cap_reached, cancelled, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                             Run
		started, finished             string
		dryRun, capReached, cancelled int
	)
	if err := row.Scan(
		&r.ID, &r.Trigger, &dryRun, &started, &finished, &r.DurationMs,
		&r.Added, &r.Upgraded, &r.Planned, &r.Processed, &r.Skipped, &r.Failed,
		&capReached, &cancelled, &r.Error,
	); err != nil {
		return nil, err
	}
	r.DryRun = dryRun != 0
	r.CapReached = capReached != 0
	r.Cancelled = cancelled != 0
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return &r, nil
}

func (q *queries) getRun(ctx context.Context, id string) (*Run, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func (q *queries) listRuns(ctx context.Context, limit, offset int64) ([]*Run, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (q *queries) countRuns(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func (q *queries) listActions(ctx context.Context, runID string) ([]*Action, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT
    id, run_id, external_id, media_type, media_title, media_year, state, action,
    release_title, hash, size_bytes, score, torrent_id, replaced_id,
    availability_assumed, dry_run, reason, error
FROM run_actions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		var (
			a               Action
			size            int64
			assumed, dryRun int
		)
		if err := rows.Scan(
			&a.ID, &a.RunID, &a.ExternalID, &a.MediaType, &a.MediaTitle, &a.MediaYear, &a.State, &a.Action,
			&a.Release, &a.Hash, &size, &a.Score, &a.TorrentID, &a.ReplacedID,
			&assumed, &dryRun, &a.Reason, &a.Error,
		); err != nil {
			return nil, err
		}
		a.SizeBytes = uint64(size)
		a.AvailabilityAssumed = assumed != 0
		a.DryRun = dryRun != 0
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

// pruneRuns deletes all but the keep most recent runs.
func (q *queries) pruneRuns(ctx context.Context, keep int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
    SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *queries) deleteAllRuns(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM runs`)
	return err
}
