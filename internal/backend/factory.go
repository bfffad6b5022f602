package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cdc/internal/amqp"
	"cdc/internal/cache"
	"cdc/internal/insight"
	"cdc/internal/log"
	"cdc/internal/parser"
	"cdc/internal/services"
	gsheet "cdc/internal/sheets/google"
	"cdc/internal/storage"
	"cdc/internal/storage/memory"
)

// cacheCleanupInterval is how often expired LRU entries are swept.
const cacheCleanupInterval = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend wires the store, optional event client, optional sheet
// source and insight client into a report service.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, ready, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(f.logger),
		services.WithInsight(insight.NewClient(insight.Config{
			BaseURL:   config.LLMAPIBase,
			Model:     config.LLMModel,
			APIKey:    config.LLMAPIKey,
			Timeout:   config.LLMTimeout,
			MaxTokens: config.LLMMaxTokens,
		})),
	}
	if config.ReportCacheSize > 0 && config.ReportCacheTTL > 0 {
		opts = append(opts, services.WithCache(config.ReportCacheSize, config.ReportCacheTTL))
	}

	// AMQP is optional: without it uploads still work, only precomputation stops
	var events *amqp.Client
	if config.AMQPURL != "" {
		events, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
			events = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts = append(opts, services.WithPublisher(events))
		}
	}

	if config.GoogleSpreadsheetID != "" {
		src, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: config.GoogleCredentialsJSON,
			CredentialsFile: config.GoogleCredentialsFile,
			DefaultRange:    config.GoogleSheetRange,
		}, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets client, sheet import disabled", log.FieldError, err)
		} else {
			opts = append(opts, services.WithSheets(src))
			f.logger.Info("Initialized Google Sheets import")
		}
	}

	p := parser.New(parser.Options{SkipRows: config.ParserSkipRows, ScanRows: config.ParserScanRows}, f.logger)
	svc := services.NewReportService(store, p, opts...)

	caches := cache.NewManager(f.logger)
	svc.RegisterCaches(caches)
	caches.StartCleanup(cacheCleanupInterval)

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", events != nil,
		"sheets_enabled", svc.SheetsEnabled())

	return &BackendResult{
		Service: svc,
		Events:  events,
		Caches:  caches,
		Ready:   ready,
		Cleanup: func() error {
			caches.Stop()
			var errs []error
			if events != nil {
				if err := events.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close amqp: %w", err))
				}
			}
			if err := svc.Close(); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.Repository, func(context.Context) error, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, repo.Ping, nil

	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		f.logger.Info("Initialized memory store", "data_directory", dataDir)
		return memory.NewFromDir(dataDir), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
