package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"zigbee-color-light/internal/automation"
	"zigbee-color-light/internal/colorcontrol"
	"zigbee-color-light/internal/device"
)

type EndpointConfig struct {
	ID         uint8 `yaml:"id"`
	Hue        uint8 `yaml:"hue"`
	Saturation uint8 `yaml:"saturation"`
}

// CapabilityConfig limits the colors the light accepts. Script, when set,
// names a Lua file defining is_color_supported(hue, saturation) and takes
// precedence over the ranges.
type CapabilityConfig struct {
	MinHue        uint8  `yaml:"min_hue"`
	MaxHue        *uint8 `yaml:"max_hue"`
	MinSaturation uint8  `yaml:"min_saturation"`
	MaxSaturation *uint8 `yaml:"max_saturation"`
	Script        string `yaml:"script"`
}

type Config struct {
	Light struct {
		Endpoints  []EndpointConfig `yaml:"endpoints"`
		Capability CapabilityConfig `yaml:"capability"`
	} `yaml:"light"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		ClientID    string `yaml:"client_id"`
		NodeID      string `yaml:"node_id"`
		Name        string `yaml:"name"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if len(c.Light.Endpoints) == 0 {
		return fmt.Errorf("light.endpoints must not be empty")
	}
	seen := make(map[uint8]bool)
	for _, ep := range c.Light.Endpoints {
		if ep.ID == 0 || ep.ID > 240 {
			return fmt.Errorf("light.endpoints: id must be 1-240, got %d", ep.ID)
		}
		if seen[ep.ID] {
			return fmt.Errorf("light.endpoints: duplicate id %d", ep.ID)
		}
		seen[ep.ID] = true
		if ep.Hue > 254 || ep.Saturation > 254 {
			return fmt.Errorf("light.endpoints: endpoint %d hue and saturation must be 0-254", ep.ID)
		}
	}

	capCfg := c.Light.Capability
	if capCfg.MinHue > 254 || *capCfg.MaxHue > 254 {
		return fmt.Errorf("light.capability: hue bounds must be 0-254")
	}
	if capCfg.MinSaturation > *capCfg.MaxSaturation || *capCfg.MaxSaturation > 254 {
		return fmt.Errorf("light.capability: saturation bounds must satisfy 0 <= min <= max <= 254")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Light.Endpoints) == 0 {
		cfg.Light.Endpoints = []EndpointConfig{{ID: 1}}
	}
	if cfg.Light.Capability.MaxHue == nil {
		v := uint8(254)
		cfg.Light.Capability.MaxHue = &v
	}
	if cfg.Light.Capability.MaxSaturation == nil {
		v := uint8(254)
		cfg.Light.Capability.MaxSaturation = &v
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "color-light.db"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "color_light"
	}
	if cfg.MQTT.NodeID == "" {
		cfg.MQTT.NodeID = "color_light"
	}
	if cfg.MQTT.Name == "" {
		cfg.MQTT.Name = "Color Light"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

// deviceConfig converts the light section for device.New.
func (c *Config) deviceConfig() device.Config {
	var dc device.Config
	for _, ep := range c.Light.Endpoints {
		dc.Endpoints = append(dc.Endpoints, device.EndpointConfig{ID: ep.ID, Hue: ep.Hue, Saturation: ep.Saturation})
	}
	return dc
}

// newCapability builds the color predicate. The returned close function
// releases a Lua predicate's interpreter.
func newCapability(cfg CapabilityConfig, logger *slog.Logger) (colorcontrol.Capability, func(), error) {
	if cfg.Script != "" {
		c, err := automation.LoadLuaCapability(cfg.Script, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("load capability script: %w", err)
		}
		logger.Info("using scripted color capability", "script", cfg.Script)
		return c, c.Close, nil
	}
	r := colorcontrol.RangeCapability{
		MinHue:        cfg.MinHue,
		MaxHue:        *cfg.MaxHue,
		MinSaturation: cfg.MinSaturation,
		MaxSaturation: *cfg.MaxSaturation,
	}
	return r, func() {}, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
