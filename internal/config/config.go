// Package config loads and types the engine's recognized configuration
// options into a single struct, resolved once at process startup.
package config

// ScanType is the closed enum of scanner families the registry dispatches
// to. Fixing this list here, rather than inferring it from scattered
// documentation, resolves the open question of which scan-type list is
// authoritative.
type ScanType string

const (
	ScanTypeCode     ScanType = "code"
	ScanTypeDocument ScanType = "document"
	ScanTypeImage    ScanType = "image"
	ScanTypeDatabase ScanType = "database"
	ScanTypeAPI      ScanType = "api"
	ScanTypeWebsite  ScanType = "website"
	ScanTypeAIModel  ScanType = "aimodel"
	ScanTypeDPIA     ScanType = "dpia"
)

// AllScanTypes enumerates every scan type the engine recognizes.
func AllScanTypes() []ScanType {
	return []ScanType{
		ScanTypeCode, ScanTypeDocument, ScanTypeImage, ScanTypeDatabase,
		ScanTypeAPI, ScanTypeWebsite, ScanTypeAIModel, ScanTypeDPIA,
	}
}

// Config is the resolved process configuration, covering the "recognized
// options" table: worker pools, queueing, deadlines, retries, registry
// reload cadence, persistence pooling, cancellation budget, history
// downsampling and session TTL.
type Config struct {
	Environment string
	Port        string

	DatabaseURL string
	RedisURL    string

	// Workers & queue
	WorkerGlobalPoolSize       int
	WorkerPerTypeCaps          map[ScanType]int
	QueueMaxAdmitted           int
	QueueBackpressureThreshold int // percent

	// Deadlines per scan type, in milliseconds.
	DeadlinesPerTypeMs map[ScanType]int64

	// Retries
	RetriesMaxAttempts   int
	RetriesBackoffMsBase int64

	// Registry
	RegistryReloadPollIntervalMs int64

	// Persistence
	PersistencePoolSize       int
	PersistenceQueryTimeoutMs int64

	// Cancellation
	CancellationMaxObservationLatencyMs int64

	// History
	HistoryDownsampleBucket string // "day" | "hour"

	// Sessions
	SessionTTLMs int64

	// Collaborators
	WebhookURL   string
	BlobS3Bucket string
	AWSRegion    string
}

// Load resolves Config from the process environment (and an optional .env
// file), applying the defaults named in the external-interfaces contract.
func Load() (*Config, error) {
	LoadEnvOnce()

	perTypeCaps := map[ScanType]int{
		ScanTypeCode:     getEnvInt("WORKERS_CAP_CODE", 12),
		ScanTypeDocument: getEnvInt("WORKERS_CAP_DOCUMENT", 10),
		ScanTypeImage:    getEnvInt("WORKERS_CAP_IMAGE", 6),
		ScanTypeDatabase: getEnvInt("WORKERS_CAP_DATABASE", 8),
		ScanTypeAPI:      getEnvInt("WORKERS_CAP_API", 10),
		ScanTypeWebsite:  getEnvInt("WORKERS_CAP_WEBSITE", 16),
		ScanTypeAIModel:  getEnvInt("WORKERS_CAP_AIMODEL", 4),
		ScanTypeDPIA:     getEnvInt("WORKERS_CAP_DPIA", 8),
	}

	deadlines := map[ScanType]int64{
		ScanTypeCode:     getEnvInt64("DEADLINE_CODE_MS", 10*60*1000),
		ScanTypeDocument: getEnvInt64("DEADLINE_DOCUMENT_MS", 10*60*1000),
		ScanTypeImage:    getEnvInt64("DEADLINE_IMAGE_MS", 10*60*1000),
		ScanTypeDatabase: getEnvInt64("DEADLINE_DATABASE_MS", 30*60*1000),
		ScanTypeAPI:      getEnvInt64("DEADLINE_API_MS", 10*60*1000),
		ScanTypeWebsite:  getEnvInt64("DEADLINE_WEBSITE_MS", 5*60*1000),
		ScanTypeAIModel:  getEnvInt64("DEADLINE_AIMODEL_MS", 10*60*1000),
		ScanTypeDPIA:     getEnvInt64("DEADLINE_DPIA_MS", 2*60*1000),
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "postgresql://localhost:5432/scancore?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		WorkerGlobalPoolSize:       getEnvInt("WORKERS_GLOBAL_POOL_SIZE", 32),
		WorkerPerTypeCaps:          perTypeCaps,
		QueueMaxAdmitted:           getEnvInt("QUEUE_MAX_ADMITTED", 10000),
		QueueBackpressureThreshold: getEnvInt("QUEUE_BACKPRESSURE_THRESHOLD_PCT", 80),

		DeadlinesPerTypeMs: deadlines,

		RetriesMaxAttempts:   getEnvInt("RETRIES_MAX_ATTEMPTS", 2),
		RetriesBackoffMsBase: getEnvInt64("RETRIES_BACKOFF_MS_BASE", 500),

		RegistryReloadPollIntervalMs: getEnvInt64("REGISTRY_RELOAD_POLL_INTERVAL_MS", 60000),

		PersistencePoolSize:       getEnvInt("PERSISTENCE_POOL_SIZE", 25),
		PersistenceQueryTimeoutMs: getEnvInt64("PERSISTENCE_QUERY_TIMEOUT_MS", 30000),

		CancellationMaxObservationLatencyMs: getEnvInt64("CANCELLATION_MAX_OBSERVATION_LATENCY_MS", 2000),

		HistoryDownsampleBucket: getEnv("HISTORY_DOWNSAMPLE_BUCKET", "day"),

		SessionTTLMs: getEnvInt64("SESSION_TTL_MS", 1800000),

		WebhookURL:   getEnv("WEBHOOK_URL", ""),
		BlobS3Bucket: getEnv("BLOB_S3_BUCKET", ""),
		AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
	}, nil
}
