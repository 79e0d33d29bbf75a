// Package config loads the orchestrator's environment configuration with
// envdecode.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the orchestrator's environment configuration.
type Config struct {
	DailyImageURLTemplate string `env:"DAILY_IMAGE_URL_TEMPLATE,optional,default=http://192.168.58.113:8000/image/480x800?date=%DATE%" description:"URL template for the daily upstream image, containing a literal %DATE% token"`
	PublicBaseURL         string `env:"PUBLIC_BASE_URL,optional" description:"base URL used verbatim for asset URL construction; derived from the request if unset"`
	DefaultPollSeconds    int    `env:"DEFAULT_POLL_SECONDS,optional,default=3600" description:"default poll interval handed to device/next when the device does not specify one"`
	PhotoframeToken       string `env:"PHOTOFRAME_TOKEN,optional" description:"operator bearer token"`
	PublicDailyBMPToken   string `env:"PUBLIC_DAILY_BMP_TOKEN,optional" description:"token gating the unauthenticated public photo endpoint; endpoint is disabled if unset"`
	DeviceTokenMapJSON    string `env:"DEVICE_TOKEN_MAP_JSON,optional" description:"JSON object mapping device_id to device bearer token, '*' allowed as wildcard key"`
	DeviceTokenMap        string `env:"DEVICE_TOKEN_MAP,optional" description:"comma-separated id=token list, used only if DEVICE_TOKEN_MAP_JSON is unset"`
	DailyFetchTimeoutSec  int    `env:"DAILY_FETCH_TIMEOUT_SECONDS,optional,default=10" description:"timeout for the daily upstream HTTP fetch"`
	TZ                    string `env:"TZ,optional,default=Asia/Shanghai" description:"IANA timezone used to resolve %DATE%"`
	ListenAddr            string `env:"LISTEN_ADDR,optional,default=:3000" description:"HTTP listen address"`
	DataDir               string `env:"DATA_DIR,optional,default=data" description:"directory holding orchestrator.db and the assets/ subdirectory"`
	LogLevel              string `env:"LOG_LEVEL,optional,default=info" description:"logrus level: debug, info, warning, error"`
}

// Load decodes the process environment into a Config and applies the
// hard floors (poll 60s, fetch timeout 1s).
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.DefaultPollSeconds < 60 {
		cfg.DefaultPollSeconds = 60
	}
	if cfg.DailyFetchTimeoutSec < 1 {
		cfg.DailyFetchTimeoutSec = 1
	}
	return cfg, nil
}

// DailyFetchTimeout returns the configured daily-fetch timeout as a
// time.Duration.
func (c *Config) DailyFetchTimeout() time.Duration {
	return time.Duration(c.DailyFetchTimeoutSec) * time.Second
}
