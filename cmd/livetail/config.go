package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sentryflow/livetail/internal/model"
)

const (
	defaultServerURL = "ws://127.0.0.1:8765/ws"
	defaultCacheURL  = "http://127.0.0.1:8765"
)

// cliConfig holds only client-relevant configuration.
type cliConfig struct {
	ServerURL            string        `mapstructure:"server-url"`
	CacheURL             string        `mapstructure:"cache-url"`
	MaxReconnectAttempts int           `mapstructure:"max-reconnect-attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect-delay"`
	PerSourceCapacity    int           `mapstructure:"per-source-capacity"`
	Sources              []string      `mapstructure:"sources"`
	Skin                 string        `mapstructure:"skin"`
	ReverseScrollWheel   bool          `mapstructure:"reverse-scroll-wheel"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LIVETAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("server-url", defaultServerURL)
	v.SetDefault("cache-url", defaultCacheURL)
	v.SetDefault("max-reconnect-attempts", model.DefaultMaxReconnectAttempts)
	v.SetDefault("reconnect-delay", model.DefaultReconnectDelay)
	v.SetDefault("per-source-capacity", model.DefaultPerSourceCapacity)
	v.SetDefault("sources", []string{model.SourceAll})
	v.SetDefault("skin", model.DefaultSkin)
	v.SetDefault("reverse-scroll-wheel", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "livetail", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
