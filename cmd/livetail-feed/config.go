package main

import (
	"github.com/sentryflow/livetail/internal/model"
)

const (
	defaultBindHost      = "127.0.0.1"
	defaultFeedPort      = 8765
	defaultTCPPort       = 4000
	defaultMuxBufferSize = DefaultMuxBuffer
	defaultCacheCapacity = model.DefaultPerSourceCapacity
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	FeedPort      int    `mapstructure:"feed-port"`
	FeedAddr      string `mapstructure:"feed-addr"`
	TCPEnabled    bool   `mapstructure:"tcp-enabled"`
	TCPPort       int    `mapstructure:"tcp-port"`
	TCPAddr       string `mapstructure:"tcp-addr"`
	MuxBufferSize int    `mapstructure:"mux-buffer-size"`
	CacheCapacity int    `mapstructure:"cache-capacity"`
	ConfigPath    string `mapstructure:"-"` // not from config file
}
