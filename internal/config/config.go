package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	pelletier "github.com/pelletier/go-toml/v2"
)

// ServerConfig is the resolved correlatrd configuration.
type ServerConfig struct {
	ListenAddr    string
	Mode          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes uint32
	AdminAddr     string
	CorsOrigins   []string
	Store         StoreConfig
	Graph         GraphConfig
}

type StoreConfig struct {
	Driver           string
	URL              string
	Table            string
	MaxIdentifierLen int
	MaxConns         int
}

// GraphConfig sizes rendered plots, in inches.
type GraphConfig struct {
	Width  float64
	Height float64
}

// ClientConfig is read by correlatrctl.
type ClientConfig struct {
	Addr    string `toml:"addr"`
	Timeout string `toml:"timeout"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:    ":42069",
		Mode:          "oneshot",
		MaxFrameBytes: 8 * 1024 * 1024,
		AdminAddr:     "",
		CorsOrigins:   []string{"http://localhost:3000"},
		Store: StoreConfig{
			Driver:           "sqlite",
			URL:              "correlatr.db",
			Table:            "user_data",
			MaxIdentifierLen: 63,
			MaxConns:         4,
		},
		Graph: GraphConfig{Width: 6, Height: 4},
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:    "localhost:42069",
		Timeout: "10s",
	}
}

// serverFile mirrors the on-disk layout. Durations are strings.
type serverFile struct {
	ListenAddr    string    `toml:"listen_addr"`
	Mode          string    `toml:"mode"`
	ReadTimeout   string    `toml:"read_timeout"`
	WriteTimeout  string    `toml:"write_timeout"`
	MaxFrameBytes uint32    `toml:"max_frame_bytes"`
	AdminAddr     string    `toml:"admin_addr"`
	CorsOrigins   []string  `toml:"cors_origins"`
	Store         storeFile `toml:"store"`
	Graph         graphFile `toml:"graph"`
}

type storeFile struct {
	Driver           string `toml:"driver"`
	URL              string `toml:"url"`
	Table            string `toml:"table"`
	MaxIdentifierLen int    `toml:"max_identifier_len"`
	MaxConns         int    `toml:"max_conns"`
}

type graphFile struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// LoadServerConfig applies the keys present in path over the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServerConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("mode") {
		cfg.Mode = strings.ToLower(strings.TrimSpace(raw.Mode))
	}
	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout); err != nil {
			return ServerConfig{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout); err != nil {
			return ServerConfig{}, err
		}
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("store", "driver") {
		cfg.Store.Driver = strings.ToLower(strings.TrimSpace(raw.Store.Driver))
	}
	if meta.IsDefined("store", "url") {
		cfg.Store.URL = strings.TrimSpace(raw.Store.URL)
	}
	if meta.IsDefined("store", "table") {
		cfg.Store.Table = strings.TrimSpace(raw.Store.Table)
	}
	if meta.IsDefined("store", "max_identifier_len") {
		cfg.Store.MaxIdentifierLen = raw.Store.MaxIdentifierLen
	}
	if meta.IsDefined("store", "max_conns") {
		cfg.Store.MaxConns = raw.Store.MaxConns
	}

	if meta.IsDefined("graph", "width") {
		cfg.Graph.Width = raw.Graph.Width
	}
	if meta.IsDefined("graph", "height") {
		cfg.Graph.Height = raw.Graph.Height
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClientConfig reads a client config; missing keys keep their defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := pelletier.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server config missing listen_addr")
	}
	switch cfg.Mode {
	case "oneshot", "persistent":
	default:
		return fmt.Errorf("server config mode must be oneshot or persistent, got %q", cfg.Mode)
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		return fmt.Errorf("server config timeouts must not be negative")
	}
	if cfg.MaxFrameBytes == 0 {
		return fmt.Errorf("server config max_frame_bytes must be positive")
	}
	if err := ValidateStoreConfig(cfg.Store); err != nil {
		return fmt.Errorf("store invalid: %w", err)
	}
	if cfg.Graph.Width <= 0 || cfg.Graph.Height <= 0 {
		return fmt.Errorf("graph width and height must be positive")
	}
	return nil
}

func ValidateStoreConfig(cfg StoreConfig) error {
	switch cfg.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("driver must be postgres or sqlite, got %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return fmt.Errorf("table %q is not a plain identifier", cfg.Table)
	}
	if cfg.MaxIdentifierLen < 0 {
		return fmt.Errorf("max_identifier_len must not be negative")
	}
	if cfg.MaxConns < 0 {
		return fmt.Errorf("max_conns must not be negative")
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("client config missing addr")
	}
	if _, err := parseDuration("timeout", cfg.Timeout); err != nil {
		return err
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
