package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`

	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RingTimeout    time.Duration `mapstructure:"ring_timeout"`
	PresenceWindow time.Duration `mapstructure:"presence_window"`

	BadgerPath string `mapstructure:"badger_path"`
	RedisAddr  string `mapstructure:"redis_addr"`

	MaxParticipants int `mapstructure:"max_participants"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "dev-secret")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ring_timeout", "45s")
	v.SetDefault("presence_window", "2m")
	v.SetDefault("badger_path", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("max_participants", 10)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
