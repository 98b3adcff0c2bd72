package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	DBPath         string        `mapstructure:"db_path"`
	Room           RoomConfig    `mapstructure:"room"`
	WS             WSConfig      `mapstructure:"ws"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateInterval   time.Duration `mapstructure:"rate_interval"`
}

type RoomConfig struct {
	MaxRooms        int           `mapstructure:"max_rooms"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	PersistDebounce time.Duration `mapstructure:"persist_debounce"`
}

type WSConfig struct {
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxConnections int           `mapstructure:"max_connections"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("secret", "")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("db_path", "poker.db")
	v.SetDefault("rate_limit", 50)
	v.SetDefault("rate_interval", "1m")

	v.SetDefault("room.max_rooms", 500)
	v.SetDefault("room.stale_after", "5m")
	v.SetDefault("room.sweep_interval", "1m")
	v.SetDefault("room.persist_debounce", "25ms")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "20s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.max_connections", 2500)
	v.SetDefault("ws.dedup_ttl", "30s")
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults.
// POKER_* environment variables override file values, e.g. POKER_ROOM_MAX_ROOMS.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("poker")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Room.MaxRooms <= 0 {
		errs = append(errs, errors.New("room.max_rooms must be positive"))
	}
	if c.WS.PingPeriod <= 0 || c.WS.PongWait <= c.WS.PingPeriod {
		errs = append(errs, errors.New("ws.pong_wait must exceed ws.ping_period"))
	}
	if c.WS.MaxConnections <= 0 {
		errs = append(errs, errors.New("ws.max_connections must be positive"))
	}
	return errors.Join(errs...)
}
