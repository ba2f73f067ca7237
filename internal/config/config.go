package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "replay.yaml"

type ProjectConfig struct {
	Service  string         `yaml:"service" env:"REPLAY_SERVICE_NAME"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Bus      BusConfig      `yaml:"bus"`
	Breakers BreakersConfig `yaml:"breakers"`
	Game     GameConfig     `yaml:"game"`
	Video    VideoConfig    `yaml:"video"`
	Render   RenderConfig   `yaml:"render"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"REPLAY_DATABASE_DSN"`
}

type BusConfig struct {
	Broker          string        `yaml:"broker" env:"REPLAY_BUS_BROKER"`
	Topic           string        `yaml:"topic" env:"REPLAY_BUS_TOPIC"`
	ClientID        string        `yaml:"client_id" env:"REPLAY_BUS_CLIENT_ID"`
	Username        string        `yaml:"username" env:"REPLAY_BUS_USERNAME"`
	Password        string        `yaml:"password" env:"REPLAY_BUS_PASSWORD"`
	QoS             byte          `yaml:"qos" env:"REPLAY_BUS_QOS"`
	MonitorInterval time.Duration `yaml:"monitor_interval" env:"REPLAY_BUS_MONITOR_INTERVAL"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"REPLAY_BUS_CONNECT_TIMEOUT"`
	MaxBackoff      time.Duration `yaml:"max_backoff" env:"REPLAY_BUS_MAX_BACKOFF"`
	StoreTimeout    time.Duration `yaml:"store_timeout" env:"REPLAY_BUS_STORE_TIMEOUT"`
}

type BreakersConfig struct {
	Storage BreakerConfig `yaml:"storage" envPrefix:"REPLAY_BREAKER_STORAGE_"`
	Bus     BreakerConfig `yaml:"bus" envPrefix:"REPLAY_BREAKER_BUS_"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	Cooldown         time.Duration `yaml:"cooldown" env:"COOLDOWN"`
}

type GameConfig struct {
	Width     float64 `yaml:"width" env:"REPLAY_GAME_WIDTH"`
	Height    float64 `yaml:"height" env:"REPLAY_GAME_HEIGHT"`
	SourceFPS int     `yaml:"source_fps" env:"REPLAY_SOURCE_FPS"`
}

type VideoConfig struct {
	Width      int    `yaml:"width" env:"REPLAY_VIDEO_WIDTH"`
	Height     int    `yaml:"height" env:"REPLAY_VIDEO_HEIGHT"`
	DefaultFPS int    `yaml:"default_fps" env:"REPLAY_DEFAULT_FPS"`
	FFmpeg     string `yaml:"ffmpeg" env:"REPLAY_FFMPEG"`
	TempDir    string `yaml:"temp_dir" env:"REPLAY_TEMP_DIR"`
}

type RenderConfig struct {
	Background  string      `yaml:"background" env:"REPLAY_BACKGROUND_COLOR"`
	StaticColor string      `yaml:"static_color" env:"REPLAY_STATIC_COLOR"`
	Palette     []string    `yaml:"palette" env:"REPLAY_PALETTE" envSeparator:","`
	Skins       SkinsConfig `yaml:"skins"`
}

type SkinsConfig struct {
	Enabled       bool   `yaml:"enabled" env:"REPLAY_SKINS_ENABLED"`
	Dir           string `yaml:"dir" env:"REPLAY_SKINS_DIR"`
	IdentityCache int    `yaml:"identity_cache" env:"REPLAY_SKINS_IDENTITY_CACHE"`
	ResizeCache   int    `yaml:"resize_cache" env:"REPLAY_SKINS_RESIZE_CACHE"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"REPLAY_LOG_LEVEL"`
	Format string `yaml:"format" env:"REPLAY_LOG_FORMAT"`
}

// LoadProjectConfig reads the YAML file at path, applies REPLAY_* environment
// overrides, fills defaults and validates the result.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	cfg := seed()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: parse env: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration written by `rsoreplay init`.
func Default() *ProjectConfig {
	cfg := seed()
	cfg.Version = 1
	applyDefaults(&cfg)
	cfg.Bus.ClientID = ""
	return &cfg
}

// seed holds defaults whose zero value is a valid setting. They are set
// before the file and environment are decoded so an explicit zero survives.
func seed() ProjectConfig {
	var cfg ProjectConfig
	cfg.Bus.QoS = 1
	return cfg
}

func (c *ProjectConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Service == "" {
		cfg.Service = "rso-replay"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "sqlite://./replay.db"
	}

	bus := &cfg.Bus
	if bus.Broker == "" {
		bus.Broker = "tcp://localhost:1883"
	}
	if bus.Topic == "" {
		bus.Topic = "game_state/+"
	}
	if bus.ClientID == "" {
		bus.ClientID = cfg.Service + "-" + uuid.NewString()
	}
	if bus.MonitorInterval == 0 {
		bus.MonitorInterval = 5 * time.Second
	}
	if bus.ConnectTimeout == 0 {
		bus.ConnectTimeout = 5 * time.Second
	}
	if bus.MaxBackoff == 0 {
		bus.MaxBackoff = 30 * time.Second
	}
	if bus.StoreTimeout == 0 {
		bus.StoreTimeout = 5 * time.Second
	}

	for _, b := range []*BreakerConfig{&cfg.Breakers.Storage, &cfg.Breakers.Bus} {
		if b.FailureThreshold == 0 {
			b.FailureThreshold = 5
		}
		if b.Cooldown == 0 {
			b.Cooldown = 60 * time.Second
		}
	}

	if cfg.Game.Width == 0 {
		cfg.Game.Width = 800
	}
	if cfg.Game.Height == 0 {
		cfg.Game.Height = 600
	}
	if cfg.Game.SourceFPS == 0 {
		cfg.Game.SourceFPS = 2
	}

	video := &cfg.Video
	if video.Width == 0 {
		video.Width = 400
	}
	if video.Height == 0 {
		video.Height = 300
	}
	if video.DefaultFPS == 0 {
		video.DefaultFPS = 30
	}
	if video.FFmpeg == "" {
		video.FFmpeg = "ffmpeg"
	}
	if video.TempDir == "" {
		video.TempDir = filepath.Join(os.TempDir(), "rso-replay")
	}

	render := &cfg.Render
	if render.Background == "" {
		render.Background = "black"
	}
	if render.StaticColor == "" {
		render.StaticColor = "white"
	}
	if len(render.Palette) == 0 {
		render.Palette = []string{"red", "blue", "green", "yellow", "purple"}
	}
	if render.Skins.IdentityCache == 0 {
		render.Skins.IdentityCache = 4096
	}
	if render.Skins.ResizeCache == 0 {
		render.Skins.ResizeCache = 512
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if !strings.HasPrefix(dsn, "sqlite://") && !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("database dsn must use sqlite://, postgres:// or postgresql://")
	}
	if strings.TrimSpace(cfg.Bus.Topic) == "" || !strings.HasSuffix(cfg.Bus.Topic, "/+") {
		return fmt.Errorf("bus topic must end with a single-level wildcard (/+): %q", cfg.Bus.Topic)
	}
	if cfg.Bus.QoS > 2 {
		return fmt.Errorf("bus qos must be 0, 1 or 2")
	}
	if cfg.Bus.MonitorInterval < 0 || cfg.Bus.ConnectTimeout < 0 || cfg.Bus.MaxBackoff < 0 {
		return fmt.Errorf("bus intervals must be positive")
	}
	if cfg.Breakers.Storage.Cooldown < 0 || cfg.Breakers.Bus.Cooldown < 0 {
		return fmt.Errorf("breaker cooldown must be positive")
	}
	if cfg.Game.Width <= 0 || cfg.Game.Height <= 0 {
		return fmt.Errorf("game dimensions must be positive")
	}
	if cfg.Game.SourceFPS <= 0 {
		return fmt.Errorf("source fps must be positive")
	}
	if cfg.Video.Width <= 0 || cfg.Video.Height <= 0 {
		return fmt.Errorf("video dimensions must be positive")
	}
	if cfg.Video.Width%2 != 0 || cfg.Video.Height%2 != 0 {
		return fmt.Errorf("video dimensions must be even for yuv420p, got %dx%d", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Video.DefaultFPS <= 0 {
		return fmt.Errorf("default fps must be positive")
	}
	if cfg.Render.Skins.Enabled && strings.TrimSpace(cfg.Render.Skins.Dir) == "" {
		return fmt.Errorf("skins dir is required when skins are enabled")
	}
	if cfg.Render.Skins.IdentityCache < 0 || cfg.Render.Skins.ResizeCache < 0 {
		return fmt.Errorf("skin cache sizes must be positive")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Log.Format)
	}
	return nil
}
