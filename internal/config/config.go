package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath names the environment variable holding the config file path
const EnvConfigPath = "NEUROSEARCH_CONFIG"

// Backend names
const (
	ObjectStoreCloudinary = "cloudinary"
	ObjectStoreFilesystem = "filesystem"

	MetadataSQLite   = "sqlite"
	MetadataPostgres = "postgres"

	VectorSQLite   = "sqlite"
	VectorPinecone = "pinecone"
	VectorPGVector = "pgvector"
)

// Duration is a time.Duration read from TOML as a string such as "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete runtime configuration
type Config struct {
	Log         LogConfig         `toml:"log"`
	ObjectStore ObjectStoreConfig `toml:"objectstore"`
	Ingest      IngestConfig      `toml:"ingest"`
	Metadata    MetadataConfig    `toml:"metadata"`
	Vector      VectorConfig      `toml:"vector"`
	Recovery    RecoveryConfig    `toml:"recovery"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Query       QueryConfig       `toml:"query"`
	HTTP        HTTPConfig        `toml:"http"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`

	envErrs []error // unparsable environment overrides
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ObjectStoreConfig struct {
	Backend       string   `toml:"backend"`
	CloudName     string   `toml:"cloud_name"`
	APIKey        string   `toml:"api_key"`
	APISecret     string   `toml:"api_secret"`
	ResourceTypes []string `toml:"resource_types"`
	Prefix        string   `toml:"prefix"`
	Dir           string   `toml:"dir"`
}

type IngestConfig struct {
	PollInterval     Duration `toml:"poll_interval"`
	PageSize         int      `toml:"page_size"`
	DocumentTimeout  Duration `toml:"document_timeout"`
	TruncateChars    int      `toml:"truncate_chars"`
	TempDir          string   `toml:"temp_dir"`
	ReconcileOnStart bool     `toml:"reconcile_on_start"`
	PDFToTextPath    string   `toml:"pdftotext_path"`
}

type MetadataConfig struct {
	Backend     string `toml:"backend"`
	DatabaseURL string `toml:"database_url"`
	SQLitePath  string `toml:"sqlite_path"`
}

type VectorConfig struct {
	Backend           string `toml:"backend"`
	PineconeAPIKey    string `toml:"pinecone_api_key"`
	PineconeHost      string `toml:"pinecone_index_host"`
	PineconeNamespace string `toml:"pinecone_namespace"`
	SQLitePath        string `toml:"sqlite_path"`
}

type RecoveryConfig struct {
	CachePath string `toml:"cache_path"`
}

type EmbeddingConfig struct {
	Provider          string  `toml:"provider"`
	Model             string  `toml:"model"`
	Dimension         int     `toml:"dimension"`
	Endpoint          string  `toml:"endpoint"`
	OpenAIAPIKey      string  `toml:"openai_api_key"`
	JinaAPIKey        string  `toml:"jina_api_key"`
	GeminiAPIKey      string  `toml:"gemini_api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	CacheSize         int     `toml:"cache_size"`
}

// APIKey returns the key for the configured provider
func (e EmbeddingConfig) APIKey() string {
	switch e.Provider {
	case "openai":
		return e.OpenAIAPIKey
	case "jina":
		return e.JinaAPIKey
	case "gemini":
		return e.GeminiAPIKey
	}
	return ""
}

type QueryConfig struct {
	TopK     int `toml:"top_k"`
	PageSize int `toml:"page_size"`
}

type HTTPConfig struct {
	Port           int      `toml:"port"`
	GinMode        string   `toml:"gin_mode"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout Duration `toml:"request_timeout"`
}

type TelemetryConfig struct {
	Endpoint    string  `toml:"otlp_endpoint"`
	ServiceName string  `toml:"service_name"`
	Insecure    bool    `toml:"insecure"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		ObjectStore: ObjectStoreConfig{
			Backend:       ObjectStoreCloudinary,
			ResourceTypes: []string{"image", "raw"},
		},
		Ingest: IngestConfig{
			PollInterval:     Duration{10 * time.Second},
			PageSize:         100,
			DocumentTimeout:  Duration{2 * time.Minute},
			TruncateChars:    3000,
			ReconcileOnStart: true,
			PDFToTextPath:    "pdftotext",
		},
		Metadata:  MetadataConfig{Backend: MetadataSQLite, SQLitePath: "neurosearch.db"},
		Vector:    VectorConfig{Backend: VectorSQLite, SQLitePath: "neurosearch_vectors.db"},
		Recovery:  RecoveryConfig{CachePath: "vector_cache.db"},
		Embedding: EmbeddingConfig{Provider: "local", CacheSize: 10000},
		Query:     QueryConfig{TopK: 50, PageSize: 10},
		HTTP: HTTPConfig{
			Port:           5000,
			GinMode:        "release",
			CORSOrigins:    []string{"*"},
			RequestTimeout: Duration{30 * time.Second},
		},
		Telemetry: TelemetryConfig{ServiceName: "neurosearch", Insecure: true},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (or
// $NEUROSEARCH_CONFIG), then a .env file in the working directory, then
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Load .env file if exists; it never overrides the real environment
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	env := &envReader{}

	c.Log.Level = env.getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env.getEnv("LOG_FORMAT", c.Log.Format)

	o := &c.ObjectStore
	o.Backend = env.getEnv("OBJECTSTORE_BACKEND", o.Backend)
	o.CloudName = env.getEnv("CLOUDINARY_CLOUD_NAME", o.CloudName)
	o.APIKey = env.getEnv("CLOUDINARY_API_KEY", o.APIKey)
	o.APISecret = env.getEnv("CLOUDINARY_API_SECRET", o.APISecret)
	o.ResourceTypes = env.getEnvList("CLOUDINARY_RESOURCE_TYPES", o.ResourceTypes)
	o.Prefix = env.getEnv("OBJECTSTORE_PREFIX", o.Prefix)
	o.Dir = env.getEnv("OBJECTSTORE_DIR", o.Dir)

	in := &c.Ingest
	in.PollInterval.Duration = env.getEnvDuration("POLL_INTERVAL", in.PollInterval.Duration)
	in.PageSize = env.getEnvInt("PAGE_SIZE", in.PageSize)
	in.DocumentTimeout.Duration = env.getEnvDuration("DOCUMENT_TIMEOUT", in.DocumentTimeout.Duration)
	in.TruncateChars = env.getEnvInt("EMBED_TRUNCATE_CHARS", in.TruncateChars)
	in.TempDir = env.getEnv("TEMP_DIR", in.TempDir)
	in.ReconcileOnStart = env.getEnvBool("RECONCILE_ON_START", in.ReconcileOnStart)
	in.PDFToTextPath = env.getEnv("PDFTOTEXT_PATH", in.PDFToTextPath)

	c.Metadata.Backend = env.getEnv("METADATA_BACKEND", c.Metadata.Backend)
	c.Metadata.DatabaseURL = env.getEnv("DATABASE_URL", c.Metadata.DatabaseURL)
	c.Metadata.SQLitePath = env.getEnv("SQLITE_PATH", c.Metadata.SQLitePath)

	v := &c.Vector
	v.Backend = env.getEnv("VECTOR_BACKEND", v.Backend)
	v.PineconeAPIKey = env.getEnv("PINECONE_API_KEY", v.PineconeAPIKey)
	v.PineconeHost = env.getEnv("PINECONE_INDEX_HOST", v.PineconeHost)
	v.PineconeNamespace = env.getEnv("PINECONE_NAMESPACE", v.PineconeNamespace)
	v.SQLitePath = env.getEnv("VECTOR_SQLITE_PATH", v.SQLitePath)

	c.Recovery.CachePath = env.getEnv("RECOVERY_CACHE_PATH", c.Recovery.CachePath)

	e := &c.Embedding
	e.Provider = env.getEnv("EMBEDDING_PROVIDER", e.Provider)
	e.Model = env.getEnv("EMBEDDING_MODEL", e.Model)
	e.Dimension = env.getEnvInt("EMBEDDING_DIMENSION", e.Dimension)
	e.Endpoint = env.getEnv("EMBEDDING_ENDPOINT", e.Endpoint)
	e.OpenAIAPIKey = env.getEnv("OPENAI_API_KEY", e.OpenAIAPIKey)
	e.JinaAPIKey = env.getEnv("JINA_API_KEY", e.JinaAPIKey)
	e.GeminiAPIKey = env.getEnv("GEMINI_API_KEY", e.GeminiAPIKey)
	e.RequestsPerSecond = env.getEnvFloat64("EMBEDDING_RPS", e.RequestsPerSecond)
	e.CacheSize = env.getEnvInt("EMBEDDING_CACHE_SIZE", e.CacheSize)

	c.Query.TopK = env.getEnvInt("TOP_K", c.Query.TopK)
	c.Query.PageSize = env.getEnvInt("RESULT_PAGE_SIZE", c.Query.PageSize)

	h := &c.HTTP
	h.Port = env.getEnvInt("PORT", h.Port)
	h.GinMode = env.getEnv("GIN_MODE", h.GinMode)
	h.CORSOrigins = env.getEnvList("CORS_ORIGINS", h.CORSOrigins)
	h.RequestTimeout.Duration = env.getEnvDuration("REQUEST_TIMEOUT", h.RequestTimeout.Duration)

	c.Telemetry.Endpoint = env.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Telemetry.ServiceName = env.getEnv("SERVICE_NAME", c.Telemetry.ServiceName)

	c.envErrs = env.errs
}

// Validate checks enumerations and ranges. Backend credentials are checked
// when the backend is constructed, so commands that never touch a backend
// do not need its secrets.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.envErrs...)

	if !oneOf(c.ObjectStore.Backend, ObjectStoreCloudinary, ObjectStoreFilesystem) {
		errs = append(errs, fmt.Errorf("unknown object store backend %q", c.ObjectStore.Backend))
	}
	if !oneOf(c.Metadata.Backend, MetadataSQLite, MetadataPostgres) {
		errs = append(errs, fmt.Errorf("unknown metadata backend %q", c.Metadata.Backend))
	}
	if !oneOf(c.Vector.Backend, VectorSQLite, VectorPinecone, VectorPGVector) {
		errs = append(errs, fmt.Errorf("unknown vector backend %q", c.Vector.Backend))
	}
	if !oneOf(c.Embedding.Provider, "", "local", "openai", "jina", "gemini") {
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if !oneOf(strings.ToLower(c.Log.Format), "json", "text") {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if c.Ingest.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Ingest.DocumentTimeout.Duration <= 0 {
		errs = append(errs, errors.New("document timeout must be positive"))
	}
	if c.Ingest.PageSize <= 0 || c.Ingest.PageSize > 500 {
		errs = append(errs, fmt.Errorf("page size must be between 1 and 500, got %d", c.Ingest.PageSize))
	}
	if c.Ingest.TruncateChars <= 0 {
		errs = append(errs, errors.New("truncate chars must be positive"))
	}
	if c.Query.TopK <= 0 || c.Query.PageSize <= 0 {
		errs = append(errs, errors.New("top k and result page size must be positive"))
	}
	if c.Query.PageSize > c.Query.TopK {
		errs = append(errs, fmt.Errorf("result page size %d exceeds top k %d", c.Query.PageSize, c.Query.TopK))
	}
	if c.Query.TopK-c.Query.PageSize > maxMoreResults {
		errs = append(errs, fmt.Errorf("top k %d leaves more than %d results after a page of %d",
			c.Query.TopK, maxMoreResults, c.Query.PageSize))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.HTTP.Port))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, errors.New("embedding dimension cannot be negative"))
	}

	return errors.Join(errs...)
}

// maxMoreResults mirrors searcher.MaxMore
const maxMoreResults = 40

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
