package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath = "configs/config.toml"

	EnvConfigPath   = "LEAF_CONFIG"
	EnvHost         = "LEAF_HOST"
	EnvPort         = "LEAF_PORT"
	EnvPlatformPort = "PORT"
	EnvModelPath    = "LEAF_MODEL_PATH"
	EnvMetadataPath = "LEAF_METADATA_PATH"
	EnvLabelsPath   = "LEAF_LABELS_PATH"
	EnvOrtLib       = "LEAF_ORT_LIB"
	EnvLogPath      = "LEAF_LOG_PATH"
	EnvLogLevel     = "LEAF_LOG_LEVEL"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type MainConfig struct {
	AppName           string `toml:"appName"`
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ShutdownTimeout   string `toml:"shutdownTimeout"`
	ReadHeaderTimeout string `toml:"readHeaderTimeout"`
	// SSLRedirect only makes sense behind a TLS-terminating proxy that sets
	// X-Forwarded-Proto; this server itself listens on plain HTTP.
	SSLRedirect  bool   `toml:"sslRedirect"`
	SSLHost      string `toml:"sslHost"`
	MaxBodyBytes int64  `toml:"maxBodyBytes"`
}

type ModelConfig struct {
	Path          string  `toml:"path"`
	MetadataPath  string  `toml:"metadataPath"`
	LabelsPath    string  `toml:"labelsPath"`
	OrtLibPath    string  `toml:"ortLibPath"`
	InputName     string  `toml:"inputName"`
	OutputName    string  `toml:"outputName"`
	InputWidth    int     `toml:"inputWidth"`
	InputHeight   int     `toml:"inputHeight"`
	OutputClasses int     `toml:"outputClasses"`
	PixelScale    float32 `toml:"pixelScale"`
	MaxPixels     int64   `toml:"maxPixels"`
}

type FetchConfig struct {
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	UserAgent      string `toml:"userAgent"`
	MaxBytes       int64  `toml:"maxBytes"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

// RemedyConfig is one keyword/remedy pair. Order in the file is lookup order.
type RemedyConfig struct {
	Keyword string `toml:"keyword"`
	Text    string `toml:"text"`
}

type Config struct {
	MainConfig    `toml:"mainConfig"`
	ModelConfig   `toml:"modelConfig"`
	FetchConfig   `toml:"fetchConfig"`
	LogConfig     `toml:"logConfig"`
	DefaultRemedy string         `toml:"defaultRemedy"`
	Remedies      []RemedyConfig `toml:"remedy"`
}

// Load reads path (or the default location) when it exists, then applies
// environment overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	cfg.loadDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.MainConfig.Host, c.MainConfig.Port)
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.MainConfig.ShutdownTimeout)
	return d
}

func (c *Config) ReadHeaderTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.MainConfig.ReadHeaderTimeout)
	return d
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchConfig.TimeoutSeconds) * time.Second
}

func (c *Config) loadDefaults() {
	if c.MainConfig.AppName == "" {
		c.MainConfig.AppName = "leaf-api"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 5002
	}
	if c.MainConfig.ShutdownTimeout == "" {
		c.MainConfig.ShutdownTimeout = "15s"
	}
	if c.MainConfig.ReadHeaderTimeout == "" {
		c.MainConfig.ReadHeaderTimeout = "10s"
	}
	if c.MainConfig.MaxBodyBytes == 0 {
		c.MainConfig.MaxBodyBytes = 20 << 20
	}

	if c.ModelConfig.Path == "" {
		c.ModelConfig.Path = "models/plant_disease_model.onnx"
	}
	if c.ModelConfig.InputName == "" {
		c.ModelConfig.InputName = "input"
	}
	if c.ModelConfig.OutputName == "" {
		c.ModelConfig.OutputName = "output"
	}
	if c.ModelConfig.InputWidth == 0 {
		c.ModelConfig.InputWidth = 128
	}
	if c.ModelConfig.InputHeight == 0 {
		c.ModelConfig.InputHeight = 128
	}
	if c.ModelConfig.PixelScale == 0 {
		c.ModelConfig.PixelScale = 1
	}
	if c.ModelConfig.MaxPixels == 0 {
		c.ModelConfig.MaxPixels = 40_000_000
	}

	if c.FetchConfig.TimeoutSeconds == 0 {
		c.FetchConfig.TimeoutSeconds = 30
	}
	if c.FetchConfig.UserAgent == "" {
		c.FetchConfig.UserAgent = defaultUserAgent
	}
	if c.FetchConfig.MaxBytes == 0 {
		c.FetchConfig.MaxBytes = 10 << 20
	}

	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(EnvHost); v != "" {
		c.MainConfig.Host = v
	}
	port := os.Getenv(EnvPort)
	if port == "" {
		port = os.Getenv(EnvPlatformPort)
	}
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		c.MainConfig.Port = p
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.ModelConfig.Path = v
	}
	if v := os.Getenv(EnvMetadataPath); v != "" {
		c.ModelConfig.MetadataPath = v
	}
	if v := os.Getenv(EnvLabelsPath); v != "" {
		c.ModelConfig.LabelsPath = v
	}
	if v := os.Getenv(EnvOrtLib); v != "" {
		c.ModelConfig.OrtLibPath = v
	}
	if v := os.Getenv(EnvLogPath); v != "" {
		c.LogConfig.LogPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogConfig.Level = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.MainConfig.Port < 1 || c.MainConfig.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.MainConfig.Port)
	}
	if _, err := time.ParseDuration(c.MainConfig.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdownTimeout: %w", err)
	}
	if d, err := time.ParseDuration(c.MainConfig.ReadHeaderTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid readHeaderTimeout %q", c.MainConfig.ReadHeaderTimeout)
	}
	if c.ModelConfig.InputWidth < 1 || c.ModelConfig.InputHeight < 1 {
		return fmt.Errorf("invalid input resolution %dx%d", c.ModelConfig.InputWidth, c.ModelConfig.InputHeight)
	}
	if c.ModelConfig.MaxPixels < 0 {
		return fmt.Errorf("maxPixels must not be negative")
	}
	if c.ModelConfig.OutputClasses < 0 {
		return fmt.Errorf("outputClasses must not be negative")
	}
	if c.FetchConfig.TimeoutSeconds < 0 {
		return fmt.Errorf("timeoutSeconds must not be negative")
	}
	for i, r := range c.Remedies {
		if strings.TrimSpace(r.Keyword) == "" {
			return fmt.Errorf("remedy %d: empty keyword", i)
		}
	}
	return nil
}
