package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "fundsage.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "FUNDSAGE_PORT")
	setString(&cfg.Server.CORSOrigin, "FUNDSAGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "FUNDSAGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "FUNDSAGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "FUNDSAGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "FUNDSAGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "FUNDSAGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.Renderer.URL, "FUNDSAGE_RENDERER_URL")
	setDuration(&cfg.Renderer.Timeout, "FUNDSAGE_RENDERER_TIMEOUT")
	setString(&cfg.Logging.Level, "FUNDSAGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "FUNDSAGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "FUNDSAGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "FUNDSAGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "FUNDSAGE_BREAKER_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "FUNDSAGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "FUNDSAGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "FUNDSAGE_CACHE_L2_TTL")
	setDuration(&cfg.Cache.RouteTTL, "FUNDSAGE_CACHE_ROUTE_TTL")

	// MCP
	setBool(&cfg.MCP.Enabled, "FUNDSAGE_MCP_ENABLED")
	setString(&cfg.MCP.Port, "FUNDSAGE_MCP_PORT")
	setString(&cfg.MCP.APIKey, "FUNDSAGE_MCP_API_KEY")

	// Telemetry
	setBool(&cfg.Telemetry.Enabled, "FUNDSAGE_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "FUNDSAGE_OTEL_ENDPOINT")
	setDuration(&cfg.Telemetry.Interval, "FUNDSAGE_OTEL_INTERVAL")

	// Orchestrator
	setInt(&cfg.Orchestrator.MaxTurns, "FUNDSAGE_ORCH_MAX_TURNS")
	setInt(&cfg.Orchestrator.PreviewLength, "FUNDSAGE_ORCH_PREVIEW_LENGTH")
	setInt(&cfg.Orchestrator.DefaultProjectionYears, "FUNDSAGE_ORCH_PROJECTION_YEARS")
	setString(&cfg.Orchestrator.RouteModel, "FUNDSAGE_ORCH_ROUTE_MODEL")
	setString(&cfg.Orchestrator.SynthesisModel, "FUNDSAGE_ORCH_SYNTHESIS_MODEL")
	setInt(&cfg.Orchestrator.SynthesisMaxTokens, "FUNDSAGE_ORCH_SYNTHESIS_MAX_TOKENS")
	setDuration(&cfg.Orchestrator.StepTimeout, "FUNDSAGE_ORCH_STEP_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Orchestrator.MaxTurns < 1 {
		return errors.New("orchestrator.max_turns must be >= 1")
	}
	if cfg.Orchestrator.PreviewLength < 1 {
		return errors.New("orchestrator.preview_length must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
