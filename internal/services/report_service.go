package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cdc/internal/amqp"
	"cdc/internal/cache"
	"cdc/internal/core"
	"cdc/internal/log"
	"cdc/internal/storage"
)

var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrReportNotFound    = errors.New("report not found")
	ErrInvalidSnapshot   = errors.New("invalid snapshot")
	ErrInvalidDate       = errors.New("invalid date")
	ErrSheetsUnavailable = errors.New("sheet import not configured")
)

// insightErrorPrefix prefixes every answer that could not be generated.
const insightErrorPrefix = "AI 분석 오류: "

// Ports consumed by the report service.
type (
	TableParser interface {
		Parse(raw []byte) (*core.Table, error)
	}

	Answerer interface {
		Answer(ctx context.Context, question string, reportContext any) (string, error)
	}

	Publisher interface {
		PublishSnapshotChanged(ctx context.Context, date, action string) error
	}

	// SheetSource renders a spreadsheet range as CSV bytes.
	SheetSource interface {
		ExportCSV(ctx context.Context, rangeA1 string) ([]byte, error)
	}
)

// DailyImpact is one point of the monthly impact chart.
type DailyImpact struct {
	Date   string  `json:"date"`
	Impact float64 `json:"impact"`
}

// ReportService orchestrates snapshot storage, reconciliation and report caching.
type ReportService struct {
	store     storage.Repository
	parser    TableParser
	engine    *core.Engine
	insight   Answerer
	publisher Publisher
	sheets    SheetSource
	logger    *log.Logger

	reports *cache.LRUCache[*core.Report]
	tables  *cache.LRUCache[*core.Table]

	// mu guards generations and orders cache writes against invalidation.
	// A date's generation moves on every invalidation, so results read
	// under an older one are never cached.
	mu          sync.Mutex
	generations map[string]uint64
}

// Option configures a ReportService.
type Option func(*ReportService)

func WithEngine(e *core.Engine) Option {
	return func(s *ReportService) { s.engine = e }
}

func WithInsight(a Answerer) Option {
	return func(s *ReportService) { s.insight = a }
}

func WithPublisher(p Publisher) Option {
	return func(s *ReportService) { s.publisher = p }
}

func WithSheets(src SheetSource) Option {
	return func(s *ReportService) { s.sheets = src }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ReportService) { s.logger = l }
}

// WithCache sizes the in-process report and table caches.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *ReportService) {
		s.reports = cache.NewLRUCache[*core.Report](size, ttl)
		s.tables = cache.NewLRUCache[*core.Table](size, ttl)
	}
}

func NewReportService(store storage.Repository, parser TableParser, opts ...Option) *ReportService {
	s := &ReportService{
		store:  store,
		parser: parser,
		engine:      core.NewEngine(),
		logger:      log.Discard(),
		generations: make(map[string]uint64),
	}
	WithCache(100, 30*time.Minute)(s)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentReport)
	return s
}

// RegisterCaches hands the service caches to a cleanup manager.
func (s *ReportService) RegisterCaches(m *cache.Manager) {
	m.Register(s.reports)
	m.Register(s.tables)
}

// Upload stores the snapshot for date, replacing any previous one.
func (s *ReportService) Upload(ctx context.Context, date, filename string, content []byte) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}

	snap := core.Snapshot{Date: d, Filename: filename, Content: content}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	// Save first, the event is best effort
	if err := s.store.PutSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	s.dropDerived(ctx, d.String())

	s.logger.InfoContext(ctx, "Snapshot stored",
		log.NewFields().WithSnapshot(d.String(), filename, len(content)).WithOperation(log.OpUpload).ToSlice()...)

	s.publish(ctx, d.String(), amqp.ActionUploaded)
	return nil
}

// Delete removes the snapshot of date and every report derived from it.
func (s *ReportService) Delete(ctx context.Context, date string) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}

	if err := s.store.DeleteSnapshot(ctx, d.String()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, d)
		}
		return fmt.Errorf("delete snapshot: %w", err)
	}
	s.dropDerived(ctx, d.String())

	s.logger.InfoContext(ctx, "Snapshot deleted", log.FieldDate, d.String(), log.FieldOperation, log.OpDelete)

	s.publish(ctx, d.String(), amqp.ActionDeleted)
	return nil
}

// Dates lists the stored snapshot dates in ascending order.
func (s *ReportService) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.store.ListDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	return dates, nil
}

// Invalidate drops in-process entries that depend on date.
func (s *ReportService) Invalidate(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(date)
}

func (s *ReportService) invalidateLocked(date string) {
	s.generations[date]++
	n := cache.InvalidateDate[*core.Report](s.reports, date)
	n += cache.InvalidateDate[*core.Table](s.tables, date)
	if n > 0 {
		s.logger.Debug("Invalidated cached entries", log.FieldDate, date, "entries", n)
	}
}

// dropDerived runs after a snapshot write. Besides the in-process entries it
// clears persisted reports an in-flight Analyze stored after the write.
func (s *ReportService) dropDerived(ctx context.Context, date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(date)
	if err := s.store.InvalidateCachedReports(ctx, date); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate persisted reports",
			log.FieldDate, date, log.FieldError, err)
	}
}

func (s *ReportService) generation(date string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[date]
}

// Analyze reconciles the snapshots of oldDate and newDate and persists the
// report. Persistence failures are logged, the report is still returned.
func (s *ReportService) Analyze(ctx context.Context, oldDate, newDate string) (*core.Report, error) {
	od, err := parseDate(oldDate)
	if err != nil {
		return nil, err
	}
	nd, err := parseDate(newDate)
	if err != nil {
		return nil, err
	}
	oldKey, newKey := od.String(), nd.String()
	oldGen, newGen := s.generation(oldKey), s.generation(newKey)

	var oldTable, newTable *core.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.table(gctx, oldKey)
		oldTable = t
		return err
	})
	g.Go(func() error {
		t, err := s.table(gctx, newKey)
		newTable = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report, err := s.engine.Reconcile(oldTable, newTable, newKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	s.mu.Lock()
	if s.generations[oldKey] == oldGen && s.generations[newKey] == newGen {
		s.reports.Set(cache.PairKey(oldKey, newKey), report)
		s.persist(ctx, oldKey, newKey, report)
	} else {
		s.logger.DebugContext(ctx, "Snapshot changed during analysis, report not cached",
			log.NewFields().WithPair(oldKey, newKey).ToSlice()...)
	}
	s.mu.Unlock()

	log.NewStructuredLogger(s.logger).LogReportComputed(ctx, oldKey, newKey,
		len(report.DailyReport), report.Summary.TotalImpact.Float())
	return report, nil
}

func (s *ReportService) table(ctx context.Context, date string) (*core.Table, error) {
	if t, ok := s.tables.Get(date); ok {
		return t, nil
	}
	gen := s.generation(date)

	snap, err := s.store.GetSnapshot(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, date)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", date, err)
	}

	t, err := s.parser.Parse(snap.Content)
	if err != nil || t == nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrInvalidSnapshot, date, snap.Filename, err)
	}
	s.mu.Lock()
	if s.generations[date] == gen {
		s.tables.Set(date, t)
	}
	s.mu.Unlock()
	return t, nil
}

func (s *ReportService) persist(ctx context.Context, oldDate, newDate string, report *core.Report) {
	data, err := json.Marshal(report)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to encode report",
			log.NewFields().WithPair(oldDate, newDate).WithError(err).ToSlice()...)
		return
	}
	if err := s.store.PutCachedReport(ctx, oldDate, newDate, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist report",
			log.NewFields().WithPair(oldDate, newDate).WithError(err).ToSlice()...)
	}
}

// CachedReport returns a previously computed report without recomputing it.
func (s *ReportService) CachedReport(ctx context.Context, oldDate, newDate string) (*core.Report, error) {
	key := cache.PairKey(oldDate, newDate)
	if r, ok := s.reports.Get(key); ok {
		return r, nil
	}

	data, err := s.store.GetCachedReport(ctx, oldDate, newDate)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load cached report: %w", err)
	}

	var r core.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode cached report %s: %w", key, err)
	}
	s.reports.Set(key, &r)
	return &r, nil
}

// MonthlyStats returns the total impact of every stored date of the month,
// each measured against the stored date just before it. Dates without a
// computed report, and the very first stored date, report zero.
func (s *ReportService) MonthlyStats(ctx context.Context, year, month int) ([]DailyImpact, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}

	dates, err := s.Dates(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(dates)

	prefix := fmt.Sprintf("%04d-%02d", year, month)
	stats := []DailyImpact{}
	for i, date := range dates {
		if !strings.HasPrefix(date, prefix) {
			continue
		}
		point := DailyImpact{Date: date}
		if i > 0 {
			point.Impact = s.cachedImpact(ctx, dates[i-1], date)
		}
		stats = append(stats, point)
	}
	return stats, nil
}

func (s *ReportService) cachedImpact(ctx context.Context, oldDate, newDate string) float64 {
	if r, ok := s.reports.Get(cache.PairKey(oldDate, newDate)); ok {
		return finiteOrZero(r.Summary.TotalImpact.Float())
	}

	data, err := s.store.GetCachedReport(ctx, oldDate, newDate)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to read cached report",
				log.NewFields().WithPair(oldDate, newDate).WithError(err).ToSlice()...)
		}
		return 0
	}

	var head struct {
		Summary struct {
			TotalImpact *float64 `json:"total_impact"`
		} `json:"summary_stats"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Summary.TotalImpact == nil {
		return 0
	}
	return finiteOrZero(*head.Summary.TotalImpact)
}

// Ask answers a free-form question about a report. It never fails: generator
// errors are returned as answer text.
func (s *ReportService) Ask(ctx context.Context, question string, contextData any) string {
	if raw, ok := contextData.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			contextData = decoded
		}
	}

	if s.insight == nil {
		return insightErrorPrefix + "insight generator not configured"
	}

	answer, err := s.insight.Answer(ctx, question, contextData)
	if err != nil {
		s.logger.ErrorContext(ctx, "Insight generation failed", log.FieldError, err, log.FieldOperation, log.OpAsk)
		return insightErrorPrefix + err.Error()
	}
	return answer
}

// SheetsEnabled reports whether ImportSheet can be used.
func (s *ReportService) SheetsEnabled() bool {
	return s.sheets != nil
}

// ImportSheet stores a spreadsheet range as the snapshot of date.
func (s *ReportService) ImportSheet(ctx context.Context, date, rangeA1 string) error {
	if s.sheets == nil {
		return ErrSheetsUnavailable
	}
	if _, err := parseDate(date); err != nil {
		return err
	}

	content, err := s.sheets.ExportCSV(ctx, rangeA1)
	if err != nil {
		return fmt.Errorf("export sheet range %q: %w", rangeA1, err)
	}

	s.logger.InfoContext(ctx, "Imported sheet range",
		log.FieldSheetRange, rangeA1, log.FieldDate, date, log.FieldBytes, len(content))
	return s.Upload(ctx, date, "sheet-"+strings.TrimSpace(date)+".csv", content)
}

func (s *ReportService) publish(ctx context.Context, date, action string) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping snapshot event", log.FieldDate, date)
		return
	}
	if err := s.publisher.PublishSnapshotChanged(ctx, date, action); err != nil {
		// Don't fail the request, the snapshot is already stored
		s.logger.ErrorContext(ctx, "Failed to publish snapshot event",
			log.FieldDate, date, log.FieldAction, action, log.FieldError, err)
	}
}

// Close releases the underlying store.
func (s *ReportService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func parseDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
