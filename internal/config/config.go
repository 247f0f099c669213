package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"pollroom/pkg/validator"
)

const envPrefix = "POLLROOM"

// Config carries every tunable the process reads at startup. Values are
// resolved in precedence order: explicit config.yaml, POLLROOM_* environment
// variables, then the built-in defaults.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Websocket WebsocketConfig `mapstructure:"websocket"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

type WebsocketConfig struct {
	WriteWait       time.Duration `mapstructure:"write_wait" validate:"required,gt=0"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"required,gt=0"`
	SendBuffer      int           `mapstructure:"send_buffer" validate:"required,min=1"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" validate:"required,min=1"`
	MessageLimit    int           `mapstructure:"message_limit" validate:"required,min=1"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Load reads configuration from an optional config.yaml in the given search
// paths (the working directory when none are given) and from the
// environment. A missing file is fine; a malformed one is not.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		v.AddConfigPath(".")
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the loaded values against the struct's validate tags.
func (c *Config) Validate() error {
	return validator.ValidateStruct(c)
}

// Address returns the listen address for the HTTP server.
func (c *ServerConfig) Address() string {
	return ":" + strconv.Itoa(c.Port)
}

// setDefaults registers every config key. AutomaticEnv resolves POLLROOM_*
// overrides only for keys viper already knows, so a key without a default
// here would silently ignore its environment variable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.max_message_bytes", 1<<20)
	v.SetDefault("websocket.message_limit", 100)
	v.SetDefault("websocket.allowed_origins", []string{})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
