package config

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dannyrandall/conferences/internal/store"
	"github.com/dannyrandall/conferences/internal/store/dynamo"
	"github.com/dannyrandall/conferences/internal/store/sqlite"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config is read from the environment and can be overridden by flags.
type Config struct {
	Backend string `validate:"oneof=sqlite dynamodb memory"`
	// DBPath is the sqlite database file.
	DBPath string `validate:"required_if=Backend sqlite"`
	// Table is the DynamoDB table name.
	Table  string `validate:"required_if=Backend dynamodb"`
	Folder string `validate:"excludesall=/"`

	LogLevel      string `validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat     string `validate:"oneof=console json"`
	TraceExporter string `validate:"oneof=none stdout otlp"`
}

func Default() Config {
	return Config{
		Backend:       BackendSQLite,
		DBPath:        "data.db",
		LogLevel:      "info",
		LogFormat:     "console",
		TraceExporter: "none",
	}
}

// FromEnv returns the default configuration with any of CONFERENCES_BACKEND,
// CONFERENCES_DB, CONFERENCES_TABLE, CONFERENCES_FOLDER, LOG_LEVEL,
// LOG_FORMAT and TRACE_EXPORTER applied.
func FromEnv() (Config, error) {
	cfg := Default()

	for env, dst := range map[string]*string{
		"CONFERENCES_BACKEND": &cfg.Backend,
		"CONFERENCES_DB":      &cfg.DBPath,
		"CONFERENCES_TABLE":   &cfg.Table,
		"CONFERENCES_FOLDER":  &cfg.Folder,
		"LOG_LEVEL":           &cfg.LogLevel,
		"LOG_FORMAT":          &cfg.LogFormat,
		"TRACE_EXPORTER":      &cfg.TraceExporter,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// OpenBackend creates the store engine selected by c.Backend. The caller
// must Close it.
func (c Config) OpenBackend(ctx context.Context) (store.Backend, error) {
	switch c.Backend {
	case BackendSQLite:
		s, err := sqlite.New(ctx, sqlite.Config{Path: c.DBPath})
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendDynamoDB:
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		otelaws.AppendMiddlewares(&cfg.APIOptions)

		return dynamo.New(dynamodb.NewFromConfig(cfg), c.Table), nil
	case BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}
