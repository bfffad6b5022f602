// Package worker precomputes reconciliation reports in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"cdc/internal/amqp"
	"cdc/internal/core"
	"cdc/internal/log"
	"cdc/internal/services"
)

// Analyzer is the part of the report service the worker drives.
type Analyzer interface {
	Dates(ctx context.Context) ([]string, error)
	Analyze(ctx context.Context, oldDate, newDate string) (*core.Report, error)
	CachedReport(ctx context.Context, oldDate, newDate string) (*core.Report, error)
	Invalidate(date string)
}

// ReportWorker keeps the reports of adjacent snapshot dates computed so the
// monthly chart is filled without manual analysis.
type ReportWorker struct {
	analyzer Analyzer
	sem      *semaphore.Weighted
	logger   *log.Logger
}

type pair struct{ oldDate, newDate string }

func NewReportWorker(analyzer Analyzer, concurrency int, logger *log.Logger) *ReportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportWorker{
		analyzer: analyzer,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSnapshotChanged recomputes the pairs affected by one snapshot event.
// An upload refreshes (previous, date) and (date, next); a delete bridges
// the gap with (previous, next).
func (w *ReportWorker) HandleSnapshotChanged(ctx context.Context, msg *amqp.SnapshotChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing snapshot change",
		log.FieldMessageID, msg.ID,
		log.FieldDate, msg.Date,
		log.FieldAction, msg.Action)

	w.analyzer.Invalidate(msg.Date)

	dates, err := w.analyzer.Dates(ctx)
	if err != nil {
		return fmt.Errorf("list dates: %w", err)
	}

	return w.run(ctx, affectedPairs(dates, msg.Date, msg.Action))
}

// StartupBackfill computes every adjacent pair that has no stored report.
// It recovers from events lost while the worker was down.
func (w *ReportWorker) StartupBackfill(ctx context.Context) error {
	dates, err := w.analyzer.Dates(ctx)
	if err != nil {
		return fmt.Errorf("list dates for backfill: %w", err)
	}
	sort.Strings(dates)

	var missing []pair
	for i := 1; i < len(dates); i++ {
		_, err := w.analyzer.CachedReport(ctx, dates[i-1], dates[i])
		if errors.Is(err, services.ErrReportNotFound) {
			missing = append(missing, pair{dates[i-1], dates[i]})
			continue
		}
		if err != nil {
			w.logger.WarnContext(ctx, "Failed to check cached report",
				log.NewFields().WithPair(dates[i-1], dates[i]).WithError(err).ToSlice()...)
		}
	}

	if len(missing) == 0 {
		w.logger.InfoContext(ctx, "No missing reports found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "Found missing reports on startup, computing...", "count", len(missing))
	return w.run(ctx, missing)
}

func (w *ReportWorker) run(ctx context.Context, pairs []pair) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pairs {
		if err := w.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer w.sem.Release(1)
			return w.compute(gctx, p)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// compute analyzes one pair. Missing or malformed snapshots are logged and
// skipped, a retry cannot fix them.
func (w *ReportWorker) compute(ctx context.Context, p pair) error {
	report, err := w.analyzer.Analyze(ctx, p.oldDate, p.newDate)
	switch {
	case errors.Is(err, services.ErrSnapshotNotFound), errors.Is(err, services.ErrInvalidSnapshot):
		w.logger.WarnContext(ctx, "Skipping report",
			log.NewFields().WithPair(p.oldDate, p.newDate).WithError(err).ToSlice()...)
		return nil
	case err != nil:
		return fmt.Errorf("analyze %s..%s: %w", p.oldDate, p.newDate, err)
	}

	w.logger.InfoContext(ctx, "Report precomputed",
		log.FieldDateOld, p.oldDate,
		log.FieldDateNew, p.newDate,
		log.FieldChanges, len(report.DailyReport))
	return nil
}

func affectedPairs(dates []string, date, action string) []pair {
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)

	var prev, next string
	stored := false
	for _, d := range sorted {
		switch {
		case d < date:
			prev = d
		case d == date:
			stored = true
		case next == "":
			next = d
		}
	}

	var pairs []pair
	switch action {
	case amqp.ActionUploaded:
		if !stored {
			return nil
		}
		if prev != "" {
			pairs = append(pairs, pair{prev, date})
		}
		if next != "" {
			pairs = append(pairs, pair{date, next})
		}
	case amqp.ActionDeleted:
		if stored {
			return nil
		}
		if prev != "" && next != "" {
			pairs = append(pairs, pair{prev, next})
		}
	}
	return pairs
}
