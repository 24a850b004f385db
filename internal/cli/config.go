package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TwigBush/reqtrace/internal/mw"
)

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	CORS       bool   `mapstructure:"cors"`
	DevNoStore bool   `mapstructure:"dev_no_store"`
}

// TraceConfig leaves the toggles as pointers: unset means "use the default".
type TraceConfig struct {
	Service       string  `mapstructure:"service"`
	Distributed   *bool   `mapstructure:"distributed"`
	Analytics     *bool   `mapstructure:"analytics"`
	AnalyticsRate float64 `mapstructure:"analytics_rate"`
	QueryString   *bool   `mapstructure:"query_string"`
	Exporter      string  `mapstructure:"exporter"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Trace   TraceConfig   `mapstructure:"trace"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TraceOptions turns the trace section into middleware options. Toggles left
// unset fall through to mw.DefaultSettings.
func (c *Config) TraceOptions() []mw.TraceOption {
	opts := []mw.TraceOption{
		mw.WithService(c.Trace.Service),
		mw.WithAnalyticsSampleRate(c.Trace.AnalyticsRate),
	}
	if c.Trace.Distributed != nil {
		opts = append(opts, mw.WithDistributedTracing(*c.Trace.Distributed))
	}
	if c.Trace.Analytics != nil {
		opts = append(opts, mw.WithAnalytics(*c.Trace.Analytics))
	}
	if c.Trace.QueryString != nil {
		opts = append(opts, mw.WithTraceQueryString(*c.Trace.QueryString))
	}
	return opts
}

// loadConfig reads path (optional), REQTRACE_* env vars and any flags in fs
// that were set, in increasing priority.
func loadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reqtrace")
		v.AddConfigPath(".")
	}

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors", false)
	v.SetDefault("server.dev_no_store", false)
	v.SetDefault("trace.service", mw.DefaultService)
	v.SetDefault("trace.analytics_rate", 1.0)
	v.SetDefault("trace.exporter", "log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("metrics.enabled", true)

	// Env overrides: REQTRACE_SERVER_PORT, REQTRACE_TRACE_SERVICE, etc.
	v.SetEnvPrefix("REQTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, k := range []string{"trace.distributed", "trace.analytics", "trace.query_string"} {
		_ = v.BindEnv(k)
	}

	if fs != nil {
		for key, flag := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var flagKeys = map[string]string{
	"server.host":     "host",
	"server.port":     "port",
	"server.cors":     "cors",
	"trace.service":   "service",
	"trace.exporter":  "exporter",
	"log.level":       "log-level",
	"log.json":        "log-json",
	"metrics.enabled": "metrics",
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Trace.Exporter {
	case "log", "none":
	default:
		return fmt.Errorf("trace.exporter %q: want log or none", c.Trace.Exporter)
	}
	if c.Trace.AnalyticsRate < 0 || c.Trace.AnalyticsRate > 1 {
		return fmt.Errorf("trace.analytics_rate %v: want a value in [0, 1]", c.Trace.AnalyticsRate)
	}
	return nil
}
