package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models homeline.yml.
type Config struct {
	Agency struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"agency"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		LinkBase string `yaml:"link_base"`
	} `yaml:"server"`
	Scanner struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		DueSoonHours    int `yaml:"due_soon_hours"`
	} `yaml:"scanner"`
	Channel struct {
		Enabled        bool   `yaml:"enabled"`
		APIURL         string `yaml:"api_url"`
		BotToken       string `yaml:"bot_token"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"channel"`
	Import struct {
		DefaultDuplicatePolicy string `yaml:"default_duplicate_policy"`
	} `yaml:"import"`
}

// ScanInterval returns the scanner period.
func (c *Config) ScanInterval() time.Duration {
	if c.Scanner.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// DueSoonThreshold returns the window ahead of the due date that counts as due-soon.
func (c *Config) DueSoonThreshold() time.Duration {
	if c.Scanner.DueSoonHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Scanner.DueSoonHours) * time.Hour
}

// ChannelTimeout bounds a single external dispatch attempt.
func (c *Config) ChannelTimeout() time.Duration {
	if c.Channel.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Channel.TimeoutSeconds) * time.Second
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run hl init first", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Agency.ID == "" {
		return fmt.Errorf("config.agency.id is required")
	}
	if c.Scanner.IntervalSeconds < 0 {
		return fmt.Errorf("config.scanner.interval_seconds must be positive")
	}
	if c.Scanner.DueSoonHours < 0 {
		return fmt.Errorf("config.scanner.due_soon_hours must be positive")
	}
	if c.Channel.Enabled && c.Channel.APIURL == "" {
		return fmt.Errorf("config.channel.api_url is required when channel is enabled")
	}
	switch c.Import.DefaultDuplicatePolicy {
	case "", "skip", "update", "error":
	default:
		return fmt.Errorf("config.import.default_duplicate_policy must be skip, update or error")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "homeline.yml")
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default Config struct for an agency.
func Default(agencyID string) *Config {
	cfg, _ := FromYAML([]byte(GenerateDefault(agencyID)))
	return cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(agencyID string) string {
	return fmt.Sprintf(defaultTemplate, agencyID)
}

const defaultTemplate = `agency:
  id: %s
  name: ""

server:
  addr: ":8080"
  base_path: /v0
  link_base: ""

scanner:
  interval_seconds: 300
  due_soon_hours: 24

channel:
  enabled: false
  api_url: ""
  bot_token: ""
  timeout_seconds: 5

import:
  default_duplicate_policy: skip
`
