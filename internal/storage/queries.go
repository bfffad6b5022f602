package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getSnapshot = `-- name: GetSnapshot :one
SELECT date, filename, content, uploaded_at FROM snapshots
WHERE date = ?
`

func (q *Queries) GetSnapshot(ctx context.Context, date string) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, date)
	var i Snapshot
	err := row.Scan(&i.Date, &i.Filename, &i.Content, &i.UploadedAt)
	return i, err
}

const upsertSnapshot = `-- name: UpsertSnapshot :exec
INSERT INTO snapshots (date, filename, content, uploaded_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
    filename = excluded.filename,
    content = excluded.content,
    uploaded_at = excluded.uploaded_at
`

type UpsertSnapshotParams struct {
	Date       string
	Filename   string
	Content    []byte
	UploadedAt time.Time
}

func (q *Queries) UpsertSnapshot(ctx context.Context, arg UpsertSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, upsertSnapshot, arg.Date, arg.Filename, arg.Content, arg.UploadedAt)
	return err
}

const deleteSnapshot = `-- name: DeleteSnapshot :execrows
DELETE FROM snapshots WHERE date = ?
`

func (q *Queries) DeleteSnapshot(ctx context.Context, date string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSnapshot, date)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listSnapshotDates = `-- name: ListSnapshotDates :many
SELECT date FROM snapshots ORDER BY date ASC
`

func (q *Queries) ListSnapshotDates(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotDates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		items = append(items, date)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getReportCache = `-- name: GetReportCache :one
SELECT id, date_old, date_new, result_json, created_at FROM report_cache
WHERE id = ?
`

func (q *Queries) GetReportCache(ctx context.Context, id string) (ReportCache, error) {
	row := q.db.QueryRowContext(ctx, getReportCache, id)
	var i ReportCache
	err := row.Scan(&i.ID, &i.DateOld, &i.DateNew, &i.ResultJson, &i.CreatedAt)
	return i, err
}

const replaceReportCache = `-- name: ReplaceReportCache :exec
INSERT OR REPLACE INTO report_cache (id, date_old, date_new, result_json, created_at)
VALUES (?, ?, ?, ?, ?)
`

type ReplaceReportCacheParams struct {
	ID         string
	DateOld    string
	DateNew    string
	ResultJson string
	CreatedAt  time.Time
}

func (q *Queries) ReplaceReportCache(ctx context.Context, arg ReplaceReportCacheParams) error {
	_, err := q.db.ExecContext(ctx, replaceReportCache, arg.ID, arg.DateOld, arg.DateNew, arg.ResultJson, arg.CreatedAt)
	return err
}

const deleteReportCacheByDate = `-- name: DeleteReportCacheByDate :execrows
DELETE FROM report_cache WHERE date_old = ? OR date_new = ?
`

func (q *Queries) DeleteReportCacheByDate(ctx context.Context, date string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReportCacheByDate, date, date)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
