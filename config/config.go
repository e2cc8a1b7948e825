package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kfrancois/fieldsync/infra/gateway"
	"github.com/kfrancois/fieldsync/infra/metrics"
	"github.com/kfrancois/fieldsync/infra/mqtt"
	"github.com/kfrancois/fieldsync/infra/ws"
)

type Config struct {
	Gateway gateway.Config `json:"gateway"`
	Feed    FeedConfig     `json:"feed"`
	Metrics metrics.Config `json:"metrics"`
	API     APIConfig      `json:"api"`
}

// FeedConfig selects the change-feed transport and carries the settings of
// both supported transports.
type FeedConfig struct {
	// Transport is "mqtt" or "ws".
	Transport string      `json:"transport"`
	MQTT      mqtt.Config `json:"mqtt"`
	WS        ws.Config   `json:"ws"`
}

// SetDefaults applies sane defaults.
func (c *FeedConfig) SetDefaults() {
	if c.Transport == "" {
		c.Transport = "mqtt"
	}
	c.MQTT.SetDefaults()
	c.WS.SetDefaults()
}

// Validate checks the transport selection and the chosen transport's config.
func (c FeedConfig) Validate() error {
	switch c.Transport {
	case "mqtt":
		return c.MQTT.Validate()
	case "ws":
		return c.WS.Validate()
	default:
		return fmt.Errorf("unknown feed transport %s", c.Transport)
	}
}

// APIConfig defines the local read-only HTTP endpoint.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Gateway.SetDefaults()
	cfg.Feed.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Gateway.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Feed.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
