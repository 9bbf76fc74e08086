package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig lists every variable WithEnv understands. Unset variables leave
// the current value in place.
type envConfig struct {
	Port        string `env:"PORT" env-description:"HTTP listen port"`
	Environment string `env:"ENVIRONMENT" env-description:"development, production or testing"`

	DatabaseURL   string `env:"DATABASE_URL" env-description:"memory, postgres(ql)://... or mongodb(+srv)://..."`
	DBSchema      string `env:"DB_SCHEMA" env-description:"Postgres schema for search_path"`
	MongoDatabase string `env:"MONGO_DATABASE" env-description:"Mongo database name"`
	AutoMigrate   string `env:"AUTO_MIGRATE" env-description:"apply migrations on startup (true/false)"`

	StorageURL         string `env:"STORAGE_URL" env-description:"memory://, file:///path or s3://bucket?region=..."`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION"`

	KeyGenerator       string   `env:"KEY_GENERATOR" env-description:"unique, timestamp or sharded"`
	MaxUploadBytes     int64    `env:"MAX_UPLOAD_BYTES" env-description:"upload size limit in bytes"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-description:"comma separated origins"`
	EventLogging       string   `env:"EVENT_LOGGING" env-description:"log upload/download events (true/false)"`
}

// WithEnv applies environment variable overrides.
//
// Database:
//
//	DATABASE_URL - "memory" (default), "postgres://..." / "postgresql://..."
//	               or "mongodb://..." / "mongodb+srv://..."
//
// Storage:
//
//	STORAGE_URL - one of:
//	              - "memory://" - in-memory storage
//	              - "file:///path/to/uploads" - filesystem storage (default ./uploads)
//	              - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return env.apply(c)
	}
}

// EnvUsage describes the environment variables WithEnv reads
func EnvUsage() string {
	var env envConfig
	usage, err := cleanenv.GetDescription(&env, nil)
	if err != nil {
		return ""
	}
	return usage
}

func (e envConfig) apply(c *ServerConfig) error {
	if e.Port != "" {
		c.Port = e.Port
	}
	if e.Environment != "" {
		c.Environment = e.Environment
	}
	if e.DBSchema != "" {
		c.DBSchema = e.DBSchema
	}
	if e.KeyGenerator != "" {
		c.KeyGenerator = e.KeyGenerator
	}
	if e.MaxUploadBytes != 0 {
		c.MaxUploadBytes = e.MaxUploadBytes
	}
	if len(e.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = trimAll(e.CORSAllowedOrigins)
	}
	if err := parseBool("AUTO_MIGRATE", e.AutoMigrate, &c.AutoMigrate); err != nil {
		return err
	}
	if err := parseBool("EVENT_LOGGING", e.EventLogging, &c.EnableEventLogging); err != nil {
		return err
	}

	if err := e.applyDatabase(c); err != nil {
		return err
	}
	return e.applyStorage(c)
}

// applyDatabase picks the metadata store from the DATABASE_URL scheme
func (e envConfig) applyDatabase(c *ServerConfig) error {
	dbURL := strings.TrimSpace(e.DatabaseURL)

	switch {
	case dbURL == "":
		// keep current setting
	case dbURL == "memory":
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		c.DatabaseType = DatabaseMongo
		c.DatabaseURL = dbURL
		if name := mongoDatabaseFromURL(dbURL); name != "" {
			c.MongoDatabase = name
		}
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'mongodb://...')", redact(dbURL))
	}

	if e.MongoDatabase != "" {
		c.MongoDatabase = e.MongoDatabase
	}
	return nil
}

func mongoDatabaseFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

// applyStorage picks the blob store from STORAGE_URL
func (e envConfig) applyStorage(c *ServerConfig) error {
	storageURL := strings.TrimSpace(e.StorageURL)

	switch {
	case storageURL == "":
		// keep current setting
	case storageURL == "memory" || storageURL == "memory://":
		c.Storage = StorageBackendConfig{Name: StorageMemory, Type: StorageMemory, Config: map[string]interface{}{}}
	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.Storage = StorageBackendConfig{
			Name:   StorageFS,
			Type:   StorageFS,
			Config: map[string]interface{}{"base_dir": path},
		}
	case strings.HasPrefix(storageURL, "s3://"):
		backend, err := parseS3URL(storageURL)
		if err != nil {
			return err
		}
		c.Storage = backend
	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
	}

	// AWS credentials apply to whichever S3 backend is configured
	if c.Storage.Type == StorageS3 {
		if e.AWSAccessKeyID != "" {
			c.Storage.Config["access_key_id"] = e.AWSAccessKeyID
		}
		if e.AWSSecretAccessKey != "" {
			c.Storage.Config["secret_access_key"] = e.AWSSecretAccessKey
		}
		if e.AWSRegion != "" {
			if _, set := c.Storage.Config["region_from_url"]; !set {
				c.Storage.Config["region"] = e.AWSRegion
			}
		}
		delete(c.Storage.Config, "region_from_url")
	}
	return nil
}

// parseS3URL reads s3://bucket[/prefix]?region=..&endpoint=..&path_style=..&create_bucket=..&sse=..&kms_key_id=..
func parseS3URL(raw string) (StorageBackendConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return StorageBackendConfig{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return StorageBackendConfig{}, fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	config := map[string]interface{}{
		"bucket": u.Host,
		"region": "us-east-1",
	}
	if prefix := strings.Trim(u.Path, "/"); prefix != "" {
		config["prefix"] = prefix
	}

	query := u.Query()
	if region := query.Get("region"); region != "" {
		config["region"] = region
		config["region_from_url"] = true
	}
	if endpoint := query.Get("endpoint"); endpoint != "" {
		config["endpoint"] = endpoint
	}
	if v := query.Get("path_style"); v != "" {
		config["use_path_style"] = v
	}
	if v := query.Get("create_bucket"); v != "" {
		config["create_bucket_if_not_exist"] = v
	}
	if sse := query.Get("sse"); sse != "" {
		config["enable_sse"] = true
		config["sse_algorithm"] = sse
	}
	if kmsKey := query.Get("kms_key_id"); kmsKey != "" {
		config["sse_kms_key_id"] = kmsKey
	}

	return StorageBackendConfig{Name: StorageS3, Type: StorageS3, Config: config}, nil
}

func parseBool(name, raw string, target *bool) error {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil
	case "1", "t", "true", "yes", "on":
		*target = true
	case "0", "f", "false", "no", "off":
		*target = false
	default:
		return fmt.Errorf("invalid boolean for %s: %q", name, raw)
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// redact hides credentials embedded in a connection URL
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
