package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ClientConfig drives one headless call client.
type ClientConfig struct {
	ServerURL string `mapstructure:"server" validate:"required,url"`
	AppID     string `mapstructure:"app_id" validate:"required"`
	Token     string `mapstructure:"token"`
	Channel   string `mapstructure:"channel" validate:"required,max=64"`
	Peer      string `mapstructure:"peer" validate:"required,max=64,excludesall=/\\"`
	Name      string `mapstructure:"name" validate:"max=36"`

	// AudioSource is an Ogg/Opus file, VideoSource an IVF/VP8 file. Empty
	// sources publish silent tracks.
	AudioSource string `mapstructure:"audio_source"`
	VideoSource string `mapstructure:"video_source"`
	// OutputDir receives one IVF file per remote video and, when
	// RecordAudio is set, one Ogg file per remote audio.
	OutputDir   string   `mapstructure:"output_dir"`
	RecordAudio bool     `mapstructure:"record_audio"`
	ICEServers  []string `mapstructure:"ice_servers"`

	RequestTimeout       time.Duration `mapstructure:"request_timeout" validate:"min=100ms"`
	SubscribeConcurrency int           `mapstructure:"subscribe_concurrency" validate:"min=1,max=64"`
	LeaveTimeout         time.Duration `mapstructure:"leave_timeout" validate:"min=100ms"`
	Duration             time.Duration `mapstructure:"duration" validate:"min=0"`
	LogLevel             string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
}

// ErrHelp is returned when the flags asked for usage.
var ErrHelp = pflag.ErrHelp

// LoadClient reads flags, COLLAB_* environment variables and an optional
// YAML file given by --config, in that order of precedence.
func LoadClient(args []string) (*ClientConfig, error) {
	fs := pflag.NewFlagSet("callctl", pflag.ContinueOnError)
	fs.String("config", "", "optional YAML config file")
	fs.String("server", "ws://localhost:8080/api/ws/signal", "signaling websocket url")
	fs.String("app_id", "collab", "application id presented on join")
	fs.String("token", "", "channel access token")
	fs.String("channel", "", "channel (collaboration group) to join")
	fs.String("peer", "", "own peer id")
	fs.String("name", "", "display name")
	fs.String("audio_source", "", "Ogg/Opus file published as microphone")
	fs.String("video_source", "", "IVF/VP8 file published as camera")
	fs.String("output_dir", "", "directory for received media")
	fs.Bool("record_audio", false, "record remote audio to output_dir")
	fs.StringSlice("ice_servers", []string{"stun:stun.l.google.com:19302"}, "ICE server urls")
	fs.Duration("request_timeout", 10*time.Second, "signaling request timeout")
	fs.Int("subscribe_concurrency", 4, "parallel subscribes while joining")
	fs.Duration("leave_timeout", 5*time.Second, "best-effort leave timeout")
	fs.Duration("duration", 0, "leave after this long; 0 waits for a signal")
	fs.String("log_level", "info", "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix("COLLAB")
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		log.Info().Str("module", "config").Str("file", file).Msg("loaded client config")
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RecordAudio && cfg.OutputDir == "" {
		return nil, errors.New("invalid config: record_audio needs output_dir")
	}
	return &cfg, nil
}
