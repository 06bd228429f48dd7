// Package config loads account settings for the example programs from a
// .env file, STEAM_* environment variables, an optional config file and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zergu1ar/steamtrade"
)

const envPrefix = "STEAM"

type Config struct {
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	SharedSecret   string        `mapstructure:"shared_secret"`
	IdentitySecret string        `mapstructure:"identity_secret"`
	APIKey         string        `mapstructure:"api_key"`
	Language       string        `mapstructure:"language"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	LogLevel       string        `mapstructure:"log_level"`
}

var keys = []string{
	"username",
	"password",
	"shared_secret",
	"identity_secret",
	"api_key",
	"language",
	"poll_interval",
	"metrics_addr",
	"log_level",
}

// RegisterFlags adds the settings that make sense on a command line.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file")
	fs.String("language", steamtrade.LanguageEng, "language of item descriptions")
	fs.Duration("poll-interval", steamtrade.DefaultPollInterval, "trade poll interval")
	fs.String("metrics-addr", "", "serve prometheus metrics on this address")
	fs.String("log-level", logrus.InfoLevel.String(), "log level")
}

// Load reads the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("language", steamtrade.LanguageEng)
	v.SetDefault("poll_interval", steamtrade.DefaultPollInterval)
	v.SetDefault("log_level", logrus.InfoLevel.String())

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if fs != nil {
		for _, key := range keys {
			if flag := fs.Lookup(strings.ReplaceAll(key, "_", "-")); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, err
				}
			}
		}
		if flag := fs.Lookup("config"); flag != nil && flag.Value.String() != "" {
			v.SetConfigFile(flag.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Credentials() *steamtrade.Credentials {
	return &steamtrade.Credentials{
		Username:       c.Username,
		Password:       c.Password,
		SharedSecret:   c.SharedSecret,
		IdentitySecret: c.IdentitySecret,
	}
}

// Logger returns a JSON logger at the configured level.
func (c *Config) Logger() (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)

	return logrus.NewEntry(logger), nil
}
