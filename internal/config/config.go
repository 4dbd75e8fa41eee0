package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CSVConfig configures the delimited-text writer. FileName may contain
// the {mode}, {threshold} and {dataset} placeholders.
type CSVConfig struct {
	RootPath string `yaml:"root_path"`
	FileName string `yaml:"file_name"`
}

// SQLiteConfig configures the sqlite writer.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS writer.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// WriterDef defines a single dataset writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	CSV        CSVConfig        `yaml:"csv"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	NATS       NATSConfig       `yaml:"nats"`
}

// PipelineConfig holds the configuration of the batch feature pipeline.
type PipelineConfig struct {
	InputDir          string    `yaml:"input_dir"`
	Modes             []string  `yaml:"modes"`
	Thresholds        []float64 `yaml:"thresholds"`
	NumWorkers        int       `yaml:"num_workers"`
	SizeOfFileChannel int       `yaml:"size_of_file_channel"`
}

// APIConfig holds the configuration of the HTTP feature service.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// ClickHouse is used to read back stored datasets; leave Host empty to
	// disable dataset queries.
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // cli or json
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Writers  []WriterDef    `yaml:"writers"`
	API      APIConfig      `yaml:"api"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultThresholds are the time thresholds, in seconds, used when the
// config does not name any.
var DefaultThresholds = []float64{2.0, 3.0, 4.0, 5.0}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in every unset value.
func (c *Config) ApplyDefaults() {
	if c.Pipeline.InputDir == "" {
		c.Pipeline.InputDir = "extracted_json"
	}
	if len(c.Pipeline.Modes) == 0 {
		c.Pipeline.Modes = []string{"engineered"}
	}
	if len(c.Pipeline.Thresholds) == 0 {
		c.Pipeline.Thresholds = append([]float64(nil), DefaultThresholds...)
	}
	if c.Pipeline.NumWorkers <= 0 {
		c.Pipeline.NumWorkers = 1
	}
	if c.Pipeline.SizeOfFileChannel <= 0 {
		c.Pipeline.SizeOfFileChannel = 64
	}
	if len(c.Writers) == 0 {
		c.Writers = []WriterDef{{Type: "csv", Enabled: true}}
	}
	for i := range c.Writers {
		if c.Writers[i].Type == "csv" && c.Writers[i].CSV.RootPath == "" {
			c.Writers[i].CSV.RootPath = "."
		}
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "cli"
	}
}

// Validate reports values that cannot be defaulted.
func (c *Config) Validate() error {
	for _, th := range c.Pipeline.Thresholds {
		if th < 0 {
			return fmt.Errorf("time threshold must not be negative, got %v", th)
		}
	}
	for _, w := range c.Writers {
		if w.Type == "" {
			return fmt.Errorf("writer definition without a type")
		}
	}
	return nil
}
