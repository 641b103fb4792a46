// Package config loads NimGenie's deployment configuration from a YAML file
// with environment-variable fallbacks, following the same "wrapper key plus
// os.Getenv default" pattern the upstream semantic config package uses.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/nimgenie/nimgenie/internal/nimgenie/nimgenieerr"
)

// Config holds every knob named in the core specification plus the
// deployment-only connection parameters needed to reach the DBMS and the
// embedding service.
type Config struct {
	// DBMS connection
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	PoolSize   int    `yaml:"pool_size"`

	// Embedding service
	EmbeddingBaseURL   string `yaml:"embedding_base_url"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`

	// Core behavior
	EnableDependencyTracking bool    `yaml:"enable_dependency_tracking"`
	VectorSimilarityThreshold float64 `yaml:"vector_similarity_threshold"`
	TransitiveReindex        bool    `yaml:"transitive_reindex"`

	// Toolchain
	CompilerBinary string `yaml:"compiler_binary"`
	PackagerBinary string `yaml:"packager_binary"`

	// MCP transport
	ListenHost string `yaml:"listen_host"`
	ListenPort int    `yaml:"listen_port"`
}

// configWrapper mirrors the "nimgenie:" top-level key the teacher's
// configWrapper used for its "semantic:" section.
type configWrapper struct {
	NimGenie Config `yaml:"nimgenie"`
}

// Default returns the built-in defaults, overridable by file and then by
// environment variables.
func Default() Config {
	return Config{
		DBHost:                    "127.0.0.1",
		DBPort:                    4000,
		DBUser:                    "root",
		DBName:                    "nimgenie",
		PoolSize:                  10,
		EmbeddingBaseURL:          "http://localhost:11434",
		EmbeddingModel:            "nomic-embed-text",
		EmbeddingBatchSize:        16,
		EmbeddingDimension:        768,
		EnableDependencyTracking:  true,
		VectorSimilarityThreshold: 0.0,
		TransitiveReindex:         false,
		CompilerBinary:            "nim",
		PackagerBinary:            "nimble",
		ListenHost:                "127.0.0.1",
		ListenPort:                8765,
	}
}

// Load reads a YAML config file (if path is non-empty and exists), overlays
// it on the defaults, and then overlays environment variables with the
// NIMGENIE_ prefix. Missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nimgenieerr.Config(fmt.Sprintf("cannot read config file: %s", path), err)
			}
		} else {
			var wrapper configWrapper
			wrapper.NimGenie = cfg
			if err := yaml.Unmarshal(data, &wrapper); err != nil {
				return cfg, nimgenieerr.Config(fmt.Sprintf("invalid YAML in %s", path), err)
			}
			cfg = wrapper.NimGenie
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	strVar(&cfg.DBHost, "NIMGENIE_DB_HOST")
	intVar(&cfg.DBPort, "NIMGENIE_DB_PORT")
	strVar(&cfg.DBUser, "NIMGENIE_DB_USER")
	strVar(&cfg.DBPassword, "NIMGENIE_DB_PASSWORD")
	strVar(&cfg.DBName, "NIMGENIE_DB_NAME")
	intVar(&cfg.PoolSize, "NIMGENIE_POOL_SIZE")

	strVar(&cfg.EmbeddingBaseURL, "NIMGENIE_EMBEDDING_URL")
	strVar(&cfg.EmbeddingModel, "NIMGENIE_EMBEDDING_MODEL")
	intVar(&cfg.EmbeddingBatchSize, "NIMGENIE_EMBEDDING_BATCH_SIZE")
	intVar(&cfg.EmbeddingDimension, "NIMGENIE_EMBEDDING_DIMENSION")

	boolVar(&cfg.EnableDependencyTracking, "NIMGENIE_ENABLE_DEPENDENCY_TRACKING")
	floatVar(&cfg.VectorSimilarityThreshold, "NIMGENIE_VECTOR_SIMILARITY_THRESHOLD")
	boolVar(&cfg.TransitiveReindex, "NIMGENIE_TRANSITIVE_REINDEX")

	strVar(&cfg.CompilerBinary, "NIMGENIE_COMPILER_BINARY")
	strVar(&cfg.PackagerBinary, "NIMGENIE_PACKAGER_BINARY")

	strVar(&cfg.ListenHost, "NIMGENIE_LISTEN_HOST")
	intVar(&cfg.ListenPort, "NIMGENIE_LISTEN_PORT")
}

func strVar(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func intVar(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVar(dst *float64, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVar(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// DSN builds the go-sql-driver/mysql data source name for this config.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
