package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"departure-board-backend/internal/params"
)

// Polling cadence bounds in seconds.
const (
	MinIntervalSeconds     = 30
	MaxIntervalSeconds     = 600
	DefaultIntervalSeconds = 60
)

// Config represents the overall application configuration.
type Config struct {
	Debug        bool             `yaml:"debug"`
	Server       ServerConfig     `yaml:"server"`
	Darwin       DarwinConfig     `yaml:"darwin"`
	Poller       PollerConfig     `yaml:"poller"`
	Images       ImagesConfig     `yaml:"images"`
	Board        BoardConfig      `yaml:"board"`
	Database     DatabaseConfig   `yaml:"database"`
	Push         PushConfig       `yaml:"push"`
	WorkerPool   WorkerPoolConfig `yaml:"worker_pool"`
	Routes       []RouteConfig    `yaml:"routes" validate:"dive"`
	StationsFile string           `yaml:"stations_file"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size" validate:"gte=1"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" validate:"gte=0,lte=65535"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DarwinConfig describes the upstream live departure board service.
type DarwinConfig struct {
	WSDL            string        `yaml:"wsdl" validate:"required,url,contains=realtime.nationalrail"`
	Endpoint        string        `yaml:"endpoint" validate:"omitempty,url"`
	APIKey          string        `yaml:"api_key" validate:"required,min=10"`
	TimeoutSeconds  int           `yaml:"timeout_seconds"`
	Timeout         time.Duration `yaml:"-"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	BoardAttempts   int           `yaml:"board_attempts" validate:"gte=1,lte=5"`
	DetailsAttempts int           `yaml:"details_attempts" validate:"gte=1,lte=5"`
	DetailsCacheTTL int           `yaml:"details_cache_ttl_seconds"`
}

// EndpointFromWSDL derives the SOAP endpoint from the published WSDL url.
func EndpointFromWSDL(wsdl string) string {
	u, err := url.Parse(wsdl)
	if err != nil {
		return wsdl
	}
	if base, ok := strings.CutSuffix(u.Path, "wsdl.aspx"); ok {
		u.Path = base + "ldb12.asmx"
		u.RawQuery = ""
	}
	return u.String()
}

// PollerConfig controls the refresh loop.
type PollerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// ImagesConfig controls board rendering.
type ImagesConfig struct {
	Enabled              bool          `yaml:"enabled"`
	OutputDir            string        `yaml:"output_dir"`
	FontDir              string        `yaml:"font_dir"`
	Styles               []string      `yaml:"styles" validate:"dive,oneof=classic modern"`
	WorkerPath           string        `yaml:"worker_path"`
	TimeoutSeconds       int           `yaml:"timeout_seconds"`
	Timeout              time.Duration `yaml:"-"`
	IncludeCallingPoints bool          `yaml:"include_calling_points"`
	ForegroundColor      string        `yaml:"forcolour" validate:"boardcolour"`
	BackgroundColor      string        `yaml:"bgcolour" validate:"boardcolour"`
	IssueColor           string        `yaml:"isscolour" validate:"boardcolour"`
	TitleColor           string        `yaml:"ticolour" validate:"boardcolour"`
	CallingPointsColor   string        `yaml:"cpcolour" validate:"boardcolour"`
	FontSize             int           `yaml:"font_size" validate:"gte=6,lte=72"`
	LeftPad              int           `yaml:"left_pad" validate:"gte=0"`
	RightPad             int           `yaml:"right_pad" validate:"gte=0"`
	Width                int           `yaml:"width" validate:"gte=100,lte=4096"`
}

// HasStyle reports whether the named style is enabled.
func (c ImagesConfig) HasStyle(style string) bool {
	for _, s := range c.Styles {
		if strings.EqualFold(s, style) {
			return true
		}
	}
	return false
}

// BoardConfig controls document construction.
type BoardConfig struct {
	MaxServices    int  `yaml:"max_services" validate:"gte=1,lte=10"`
	LegacyMidnight bool `yaml:"legacy_midnight"`
}

// RouteConfig is a single monitored origin/destination pair.
type RouteConfig struct {
	ID                   string `yaml:"id" validate:"required,alphanumunicode"`
	Name                 string `yaml:"name"`
	Station              string `yaml:"station" validate:"required"`
	Destination          string `yaml:"destination"`
	Active               bool   `yaml:"active"`
	IncludeCallingPoints bool   `yaml:"include_calling_points"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn" validate:"required"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := newValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// The render worker only reads #RGB and #RRGGBB.
	v.RegisterValidation("boardcolour", func(fl validator.FieldLevel) bool {
		_, err := params.ParseColor(fl.Field().String())
		return err == nil
	})
	return v
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	switch {
	case cfg.Poller.IntervalSeconds <= 0:
		cfg.Poller.IntervalSeconds = DefaultIntervalSeconds
	case cfg.Poller.IntervalSeconds < MinIntervalSeconds:
		log.Printf("Warning: poller.interval_seconds %d below minimum; using %d", cfg.Poller.IntervalSeconds, MinIntervalSeconds)
		cfg.Poller.IntervalSeconds = MinIntervalSeconds
	case cfg.Poller.IntervalSeconds > MaxIntervalSeconds:
		log.Printf("Warning: poller.interval_seconds %d above maximum; using %d", cfg.Poller.IntervalSeconds, MaxIntervalSeconds)
		cfg.Poller.IntervalSeconds = MaxIntervalSeconds
	}
	cfg.Poller.Interval = time.Duration(cfg.Poller.IntervalSeconds) * time.Second

	if cfg.Darwin.Endpoint == "" {
		cfg.Darwin.Endpoint = EndpointFromWSDL(cfg.Darwin.WSDL)
	}
	if cfg.Darwin.TimeoutSeconds <= 0 {
		cfg.Darwin.TimeoutSeconds = 30
	}
	cfg.Darwin.Timeout = time.Duration(cfg.Darwin.TimeoutSeconds) * time.Second
	if cfg.Darwin.BoardAttempts <= 0 {
		cfg.Darwin.BoardAttempts = 3
	}
	if cfg.Darwin.DetailsAttempts <= 0 {
		cfg.Darwin.DetailsAttempts = 2
	}
	if cfg.Darwin.RequestsPerSec <= 0 {
		cfg.Darwin.RequestsPerSec = 5
	}
	if cfg.Darwin.DetailsCacheTTL <= 0 {
		cfg.Darwin.DetailsCacheTTL = 20
	}

	img := &cfg.Images
	if img.OutputDir == "" {
		img.OutputDir = "./boards"
	}
	if img.TimeoutSeconds <= 0 {
		img.TimeoutSeconds = 10
	}
	img.Timeout = time.Duration(img.TimeoutSeconds) * time.Second
	if img.ForegroundColor == "" {
		img.ForegroundColor = "#0F0"
	}
	if img.BackgroundColor == "" {
		img.BackgroundColor = "#000"
	}
	if img.IssueColor == "" {
		img.IssueColor = "#F00"
	}
	if img.TitleColor == "" {
		img.TitleColor = "#0FF"
	}
	if img.CallingPointsColor == "" {
		img.CallingPointsColor = "#FFF"
	}
	if img.FontSize <= 0 {
		img.FontSize = 9
	}
	if img.LeftPad <= 0 {
		img.LeftPad = 3
	}
	if img.RightPad <= 0 {
		img.RightPad = 3
	}
	if img.Width <= 0 {
		img.Width = 720
	}

	if cfg.Board.MaxServices <= 0 {
		cfg.Board.MaxServices = 10
	}

	for i := range cfg.Routes {
		if cfg.Routes[i].Destination == "" {
			cfg.Routes[i].Destination = "ALL"
		}
		if cfg.Routes[i].Name == "" {
			cfg.Routes[i].Name = cfg.Routes[i].ID
		}
	}

	if cfg.StationsFile == "" {
		cfg.StationsFile = "./config/stations.txt"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
