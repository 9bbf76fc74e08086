package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/resource-hub/pkg/resourcehub"
	"github.com/tendant/resource-hub/pkg/resourcehub/objectkey"
	"github.com/tendant/resource-hub/pkg/resourcehub/repo/memory"
	repomongo "github.com/tendant/resource-hub/pkg/resourcehub/repo/mongo"
	repopg "github.com/tendant/resource-hub/pkg/resourcehub/repo/postgres"
	fsstorage "github.com/tendant/resource-hub/pkg/resourcehub/storage/fs"
	memorystorage "github.com/tendant/resource-hub/pkg/resourcehub/storage/memory"
	s3storage "github.com/tendant/resource-hub/pkg/resourcehub/storage/s3"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongo"
)

// Storage backend types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// DefaultUploadDir mirrors the historical "uploads/" directory
const DefaultUploadDir = "./uploads"

// DefaultMongoDatabase is used when neither MONGO_DATABASE nor the URL names one
const DefaultMongoDatabase = "resourcehub"

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:          "8080",
		Environment:   "development",
		DatabaseType:  DatabaseMemory,
		MongoDatabase: DefaultMongoDatabase,
		AutoMigrate:   true,
		Storage: StorageBackendConfig{
			Name: StorageFS,
			Type: StorageFS,
			Config: map[string]interface{}{
				"base_dir": DefaultUploadDir,
			},
		},
		KeyGenerator:       "unique",
		MaxUploadBytes:     50 << 20,
		CORSAllowedOrigins: []string{"*"},
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the resource hub server and CLI
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres", "mongo"
	DBSchema      string // Postgres schema for search_path (default: server default)
	MongoDatabase string
	AutoMigrate   bool // apply Postgres migrations / Mongo indexes on startup

	// Storage configuration
	Storage StorageBackendConfig

	// Upload options
	KeyGenerator   string // "unique", "timestamp", "sharded"
	MaxUploadBytes int64

	// Server options
	CORSAllowedOrigins []string
	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for the blob storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres, DatabaseMongo:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'mongo'")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("filesystem storage requires base_dir")
		}
	case StorageS3:
		if getString(c.Storage.Config, "bucket", "") == "" {
			return errors.New("s3 storage requires bucket")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if _, err := objectkey.NewGenerator(c.KeyGenerator); err != nil {
		return err
	}

	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}

	return nil
}

// Components are the live pieces built from a ServerConfig. Close releases
// database connections.
type Components struct {
	Service    resourcehub.Service
	Repository resourcehub.Repository
	BlobStore  resourcehub.BlobStore

	closers []func()
}

// Close releases resources in reverse order of creation
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build creates the repository, blob store and Service described by the
// configuration. Extra sinks receive events next to the optional logging sink.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, sinks ...resourcehub.EventSink) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	components := &Components{}

	repo, err := c.buildRepository(ctx, components)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	components.Repository = repo

	store, err := c.buildStorageBackend(c.Storage)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Name, err)
	}
	components.BlobStore = store

	generator, err := objectkey.NewGenerator(c.KeyGenerator)
	if err != nil {
		components.Close()
		return nil, err
	}

	var eventSinks resourcehub.MultiEventSink
	if c.EnableEventLogging {
		eventSinks = append(eventSinks, resourcehub.NewLoggingEventSink(logger))
	}
	eventSinks = append(eventSinks, sinks...)

	options := []resourcehub.Option{
		resourcehub.WithRepository(repo),
		resourcehub.WithBlobStore(c.Storage.Name, store),
		resourcehub.WithKeyGenerator(generator),
		resourcehub.WithLogger(logger),
	}
	if len(eventSinks) > 0 {
		options = append(options, resourcehub.WithEventSink(eventSinks))
	}

	svc, err := resourcehub.New(options...)
	if err != nil {
		components.Close()
		return nil, err
	}
	components.Service = svc

	return components, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, components *Components) (resourcehub.Repository, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := NewPostgresPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		components.closers = append(components.closers, pool.Close)

		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return repopg.NewWithPool(pool), nil

	case DatabaseMongo:
		client, err := repomongo.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		components.closers = append(components.closers, func() { _ = repomongo.Disconnect(client) })

		repo := repomongo.New(client.Database(c.MongoDatabase))
		if c.AutoMigrate {
			if err := repo.EnsureIndexes(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPostgresPool opens a pool, sets search_path to schema when given, and pings it.
func NewPostgresPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (resourcehub.BlobStore, error) {
	switch config.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		store, err := fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", DefaultUploadDir),
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case StorageS3:
		store, err := s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			Prefix:                 getString(config.Config, "prefix", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
