package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cdc/internal/core"
	"cdc/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GetSnapshot(ctx context.Context, date string) (core.Snapshot, error) {
	row, err := r.queries.GetSnapshot(ctx, date)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("get snapshot %s: %w", date, err)
	}
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("stored snapshot date %q: %w", row.Date, err)
	}
	return core.Snapshot{
		Date:       d,
		Filename:   row.Filename,
		Content:    row.Content,
		UploadedAt: row.UploadedAt,
	}, nil
}

func (r *SQLiteRepository) PutSnapshot(ctx context.Context, s core.Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	uploaded := s.UploadedAt
	if uploaded.IsZero() {
		uploaded = r.now().UTC()
	}
	date := s.Date.String()

	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.UpsertSnapshot(ctx, UpsertSnapshotParams{
			Date:       date,
			Filename:   s.Filename,
			Content:    s.Content,
			UploadedAt: uploaded,
		}); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
		if _, err := q.DeleteReportCacheByDate(ctx, date); err != nil {
			return fmt.Errorf("invalidate cached reports: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Snapshot saved to SQLite",
		log.FieldDate, date,
		log.FieldFilename, s.Filename,
		log.FieldBytes, len(s.Content))
	return nil
}

func (r *SQLiteRepository) DeleteSnapshot(ctx context.Context, date string) error {
	err := r.inTx(ctx, func(q *Queries) error {
		n, err := q.DeleteSnapshot(ctx, date)
		if err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if _, err := q.DeleteReportCacheByDate(ctx, date); err != nil {
			return fmt.Errorf("invalidate cached reports: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Snapshot deleted", log.FieldDate, date)
	return nil
}

func (r *SQLiteRepository) ListDates(ctx context.Context) ([]string, error) {
	dates, err := r.queries.ListSnapshotDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

func (r *SQLiteRepository) GetCachedReport(ctx context.Context, oldDate, newDate string) ([]byte, error) {
	row, err := r.queries.GetReportCache(ctx, ReportKey(oldDate, newDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached report: %w", err)
	}
	return []byte(row.ResultJson), nil
}

func (r *SQLiteRepository) PutCachedReport(ctx context.Context, oldDate, newDate string, resultJSON []byte) error {
	err := r.queries.ReplaceReportCache(ctx, ReplaceReportCacheParams{
		ID:         ReportKey(oldDate, newDate),
		DateOld:    oldDate,
		DateNew:    newDate,
		ResultJson: string(resultJSON),
		CreatedAt:  r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("store cached report: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) InvalidateCachedReports(ctx context.Context, date string) error {
	n, err := r.queries.DeleteReportCacheByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("invalidate cached reports: %w", err)
	}
	r.logger.DebugContext(ctx, "Cached reports invalidated", log.FieldDate, date, "count", n)
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
