package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `yaml:"listen_addr"`
	Debug      bool   `yaml:"debug"`

	// Directories
	DataDirectory      string `yaml:"data_directory"`
	TemplatesDirectory string `yaml:"templates_directory"`
	StaticDirectory    string `yaml:"static_directory"`

	// Source workbook, relative to DataDirectory unless absolute
	SourceFile string `yaml:"source_file"`

	// Password unlocks an encrypted data directory; env only
	Password string `yaml:"-"`

	CacheTTL     time.Duration `yaml:"cache_ttl"`
	Timezone     string        `yaml:"timezone"`
	DefaultBarra string        `yaml:"default_barra"`

	Lookback LookbackConfig `yaml:"lookback"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Columns  ColumnsConfig  `yaml:"columns"`
}

// LookbackConfig bounds the look-back control, in hours
type LookbackConfig struct {
	Default int `yaml:"default"`
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
}

// SheetsConfig names the worksheets of the source workbook
type SheetsConfig struct {
	PDO  string `yaml:"pdo"`
	COS  string `yaml:"cos"`
	Flow string `yaml:"flow"`
}

// MatcherConfig locates a column by exact name, then by substring
type MatcherConfig struct {
	Exact    string `yaml:"exact"`
	Contains string `yaml:"contains"`
}

// ColumnsConfig names the columns the loader looks for
type ColumnsConfig struct {
	Date     string        `yaml:"date"`
	Time     string        `yaml:"time"`
	Measured MatcherConfig `yaml:"measured"`
	Forecast MatcherConfig `yaml:"forecast"`
	Reserved []string      `yaml:"reserved"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:         ":8080",
		Debug:              false,
		DataDirectory:      filepath.Join(wd, "data"),
		TemplatesDirectory: filepath.Join(wd, "web", "templates"),
		StaticDirectory:    filepath.Join(wd, "web", "static"),
		SourceFile:         "Fuente.xlsx",
		CacheTTL:           30 * time.Second,
		Timezone:           "America/Lima",
		DefaultBarra:       "Santa Rosa",
		Lookback: LookbackConfig{
			Default: 12,
			Min:     1,
			Max:     24,
		},
		Sheets: SheetsConfig{
			PDO:  "CMG-PDO",
			COS:  "CMG-COS",
			Flow: "Hidro-ELP",
		},
		Columns: ColumnsConfig{
			Date:     "Fecha",
			Time:     "Hora",
			Measured: MatcherConfig{Exact: "Medido", Contains: "Medido"},
			Forecast: MatcherConfig{Exact: "Proyección", Contains: "Proye"},
			Reserved: []string{"fecha", "hora", "datetime", "date", "time"},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by VISOR_CONFIG, and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("VISOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ensureDirectories()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if addr := os.Getenv("VISOR_LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if debug := os.Getenv("VISOR_DEBUG"); debug == "true" || debug == "1" {
		c.Debug = true
	}
	if dataDir := os.Getenv("VISOR_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if src := os.Getenv("VISOR_SOURCE_FILE"); src != "" {
		c.SourceFile = src
	}
	if templatesDir := os.Getenv("VISOR_TEMPLATES_DIR"); templatesDir != "" {
		c.TemplatesDirectory = templatesDir
	}
	if staticDir := os.Getenv("VISOR_STATIC_DIR"); staticDir != "" {
		c.StaticDirectory = staticDir
	}
	if ttl := os.Getenv("VISOR_CACHE_TTL"); ttl != "" {
		d, err := parseTTL(ttl)
		if err != nil {
			return fmt.Errorf("VISOR_CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}
	if tz := os.Getenv("VISOR_TIMEZONE"); tz != "" {
		c.Timezone = tz
	}
	if barra := os.Getenv("VISOR_DEFAULT_BARRA"); barra != "" {
		c.DefaultBarra = barra
	}
	if reserved := splitCSV(os.Getenv("VISOR_RESERVED_COLUMNS")); len(reserved) > 0 {
		c.Columns.Reserved = reserved
	}
	c.Password = os.Getenv("VISOR_PASSWORD")
	return nil
}

// parseTTL accepts a Go duration ("45s") or a bare number of seconds
func parseTTL(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate reports settings the loader cannot work with
func (c *Config) Validate() error {
	var errs []error
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL))
	}
	lb := c.Lookback
	if lb.Min < 1 || lb.Min > lb.Max || lb.Default < lb.Min || lb.Default > lb.Max {
		errs = append(errs, fmt.Errorf("lookback must satisfy 1 <= min <= default <= max, got %d/%d/%d", lb.Min, lb.Default, lb.Max))
	}
	if c.Sheets.PDO == "" || c.Sheets.COS == "" || c.Sheets.Flow == "" {
		errs = append(errs, errors.New("sheets.pdo, sheets.cos and sheets.flow are required"))
	}
	if c.Columns.Date == "" || c.Columns.Time == "" {
		errs = append(errs, errors.New("columns.date and columns.time are required"))
	}
	if c.Columns.Measured == (MatcherConfig{}) || c.Columns.Forecast == (MatcherConfig{}) {
		errs = append(errs, errors.New("columns.measured and columns.forecast need an exact name or a substring"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ensureDirectories creates required directories if they don't exist
func (c *Config) ensureDirectories() {
	if err := os.MkdirAll(c.DataDirectory, 0755); err != nil {
		log.Printf("Warning: could not create directory %s: %v", c.DataDirectory, err)
	}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
