package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// DefaultPath is read when CARDSHIFTER_CONFIG is unset.
const DefaultPath = "config/server.toml"

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	Game      GameConfig      `toml:"game"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Health    HealthConfig    `toml:"health"`
}

type ServerConfig struct {
	Name      string `toml:"name" env:"CARDSHIFTER_SERVER_NAME"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress      string        `toml:"bind_address" env:"CARDSHIFTER_BIND_ADDRESS"`
	WebSocketAddress string        `toml:"websocket_address" env:"CARDSHIFTER_WEBSOCKET_ADDRESS"` // empty = disabled
	OutQueueSize     int           `toml:"out_queue_size" env:"CARDSHIFTER_OUT_QUEUE_SIZE"`
	WriteTimeout     time.Duration `toml:"write_timeout" env:"CARDSHIFTER_WRITE_TIMEOUT"`
	MaxFrameSize     int           `toml:"max_frame_size" env:"CARDSHIFTER_MAX_FRAME_SIZE"`
	PacketsPerSecond int           `toml:"packets_per_second" env:"CARDSHIFTER_PACKETS_PER_SECOND"` // 0 = unlimited
}

type GameConfig struct {
	Ruleset     string        `toml:"ruleset" env:"CARDSHIFTER_RULESET"`
	RulesetsDir string        `toml:"rulesets_dir" env:"CARDSHIFTER_RULESETS_DIR"`
	AITick      time.Duration `toml:"ai_tick" env:"CARDSHIFTER_AI_TICK"`
	AIPolicy    string        `toml:"ai_policy" env:"CARDSHIFTER_AI_POLICY"` // "random" or "lua"
	AIScript    string        `toml:"ai_script" env:"CARDSHIFTER_AI_SCRIPT"`
	AIName      string        `toml:"ai_name" env:"CARDSHIFTER_AI_NAME"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn" env:"CARDSHIFTER_DATABASE_DSN"` // empty = no persistence
	MaxOpenConns    int           `toml:"max_open_conns" env:"CARDSHIFTER_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `toml:"max_idle_conns" env:"CARDSHIFTER_DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" env:"CARDSHIFTER_DATABASE_CONN_MAX_LIFETIME"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"CARDSHIFTER_LOG_LEVEL"`
	Format string `toml:"format" env:"CARDSHIFTER_LOG_FORMAT"` // "json" or "console"
}

type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" env:"CARDSHIFTER_OTLP_ENDPOINT"` // empty = tracing off
	ServiceName string `toml:"service_name" env:"CARDSHIFTER_SERVICE_NAME"`
	Insecure    bool   `toml:"insecure" env:"CARDSHIFTER_OTLP_INSECURE"`
}

type HealthConfig struct {
	Address string `toml:"address" env:"CARDSHIFTER_HEALTH_ADDRESS"` // empty = disabled
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Path returns the config file to load.
func Path() string {
	if p := os.Getenv("CARDSHIFTER_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "Cardshifter",
		},
		Network: NetworkConfig{
			BindAddress:  "0.0.0.0:4242",
			OutQueueSize: 256,
			WriteTimeout: 10 * time.Second,
			MaxFrameSize: 1 << 20,
		},
		Game: GameConfig{
			Ruleset:  "vanilla",
			AITick:   500 * time.Millisecond,
			AIPolicy: "random",
			AIName:   "AI",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cardshifter",
		},
	}
}
