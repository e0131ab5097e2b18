package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the channel server configuration.
type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int           `mapstructure:"port" validate:"min=1,max=65535"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"min=1024"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"min=1s"`
	Secret     string        `mapstructure:"secret" validate:"required"`

	AppID        string   `mapstructure:"app_id" validate:"required"`
	ChannelToken string   `mapstructure:"channel_token"`
	ICEServers   []string `mapstructure:"ice_servers"`

	SendQueue          int           `mapstructure:"send_queue" validate:"min=1"`
	JoinLimit          int           `mapstructure:"join_limit" validate:"min=1"`
	JoinWindow         time.Duration `mapstructure:"join_window" validate:"min=1s"`
	MaxDrops           int           `mapstructure:"max_drops" validate:"min=0"`
	RenegotiateTimeout time.Duration `mapstructure:"renegotiate_timeout" validate:"min=1s"`
}

func configFile() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := configFile()
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("app_id", "collab")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("send_queue", 32)
	v.SetDefault("join_limit", 5)
	v.SetDefault("join_window", "10s")
	v.SetDefault("max_drops", 0)
	v.SetDefault("renegotiate_timeout", "10s")

	v.SetEnvPrefix("COLLAB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("app_id", cfg.AppID).Msg("server config")
	return &cfg, nil
}
