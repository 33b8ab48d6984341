package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "misperer"

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	MISP struct {
		URL        string `yaml:"url"`
		Key        string `yaml:"key"`
		VerifyCert *bool  `yaml:"verify_cert"`
	} `yaml:"misp"`
	ReadOnly *bool `yaml:"read_only"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "MISPERER_". The platform
// settings also accept the unprefixed names MISP_URL, MISP_KEY and MISP_VERIFYCERT.
type Config struct {
	// Config File Path (Loaded first from env). Optional.
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// Platform connection
	MISPURL        string `envconfig:"MISP_URL"`
	MISPKey        string `envconfig:"MISP_KEY"`
	MISPVerifyCert *bool  `envconfig:"MISP_VERIFYCERT"`

	// ReadOnly hides every mutating tool.
	ReadOnly bool `envconfig:"READ_ONLY"`

	// Environment-overridable fields
	ListenAddr               string        `envconfig:"LISTEN_ADDR" default:":8080"`
	AdminAddr                string        `envconfig:"ADMIN_ADDR" default:":8081"`
	HTTPClientTimeout        time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ShutdownTimeout          time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ServerIdleTimeout        time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	OtelExporterOtlpEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFile                  string        `envconfig:"LOG_FILE"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// VerifyCert reports whether TLS certificates of the platform are verified.
func (c *Config) VerifyCert() bool {
	return c.MISPVerifyCert == nil || *c.MISPVerifyCert
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.MISPURL == "" {
		errs = append(errs, errors.New("MISP_URL is required"))
	} else if u, err := url.Parse(c.MISPURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("MISP_URL %q is not an absolute http(s) URL", c.MISPURL))
	}
	if c.MISPKey == "" {
		errs = append(errs, errors.New("MISP_KEY is required"))
	}
	if c.MISPVerifyCert == nil {
		errs = append(errs, errors.New("MISP_VERIFYCERT is required"))
	}
	if c.HTTPClientTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_CLIENT_TIMEOUT must be positive, got %s", c.HTTPClientTimeout))
	}
	return errors.Join(errs...)
}

// Load reads the optional .env file, then environment variables (to get the file path),
// then the YAML file, and finally merges/overrides with environment variables again.
// Variables already set in the process environment win over the .env file.
func Load(envFile string) (*Config, error) {
	// 0. .env file; a missing file is fine
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file '%s': %w", envFile, err)
		}
	}

	// 1. Load initial config from Env (primarily to get ConfigFilePath)
	var initialCfg Config
	if err := envconfig.Process(envPrefix, &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	// 2. Load config from YAML file if path is specified
	finalCfg := initialCfg
	if initialCfg.ConfigFilePath != "" {
		yamlFile, err := os.ReadFile(initialCfg.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		var fileCfg FileConfig
		if err := yaml.Unmarshal(yamlFile, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		slog.Info("Loaded configuration from file.", "path", initialCfg.ConfigFilePath)
		fileCfg.applyTo(&finalCfg)
	}

	// 3. Process environment variables AGAIN to allow overrides over file settings.
	if err := envconfig.Process(envPrefix, &finalCfg); err != nil {
		return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
	}

	if err := finalCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &finalCfg, nil
}

func (f FileConfig) applyTo(cfg *Config) {
	if f.MISP.URL != "" {
		cfg.MISPURL = f.MISP.URL
	}
	if f.MISP.Key != "" {
		cfg.MISPKey = f.MISP.Key
	}
	if f.MISP.VerifyCert != nil {
		v := *f.MISP.VerifyCert
		cfg.MISPVerifyCert = &v
	}
	if f.ReadOnly != nil {
		cfg.ReadOnly = *f.ReadOnly
	}
}
