package backend

import (
	"context"
	"time"

	"cdc/internal/amqp"
	"cdc/internal/cache"
	"cdc/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired report service and what the binaries need
// around it.
type BackendResult struct {
	Service *services.ReportService
	// Events is nil when AMQP is not configured.
	Events *amqp.Client
	Caches *cache.Manager
	// Ready checks the store for readiness probes.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific; dated files in it seed the store
	DataDirectory string

	// Optional snapshot events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Insight generator
	LLMAPIBase   string
	LLMModel     string
	LLMAPIKey    string
	LLMTimeout   time.Duration
	LLMMaxTokens int

	// Optional Google Sheets import source
	GoogleSpreadsheetID   string
	GoogleSheetRange      string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	ReportCacheSize int
	ReportCacheTTL  time.Duration
	ParserSkipRows  int
	ParserScanRows  int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
