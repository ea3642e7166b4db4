// Package config loads the server configuration: a YAML file with an
// environment overlay for secrets and deploy toggles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"achievements.party/internal/notify"
	"achievements.party/internal/roster"
	"achievements.party/internal/settings"
)

type Config struct {
	Addr     string `yaml:"addr"`
	DataDir  string `yaml:"data_dir"`
	WorldID  string `yaml:"world_id"`
	Database string `yaml:"database"`

	AdminToken      string   `yaml:"admin_token"`
	EnableAdminHTTP bool     `yaml:"enable_admin_http"`
	AllowedOrigins  []string `yaml:"allowed_origins"`

	// Defaults overrides the registered defaults of world/client flags.
	Defaults map[string]any `yaml:"defaults"`
	Messages notify.Messages `yaml:"messages"`
	Roster   roster.Roster   `yaml:"roster"`
}

// Env is the environment overlay. Empty values leave the file config alone.
type Env struct {
	Addr            string   `env:"ACH_ADDR"`
	DataDir         string   `env:"ACH_DATA_DIR"`
	AdminToken      string   `env:"ACH_ADMIN_TOKEN"`
	EnableAdminHTTP string   `env:"ACH_ENABLE_ADMIN_HTTP"`
	AllowedOrigins  []string `env:"ACH_ALLOWED_ORIGINS" envSeparator:","`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads path (optional), applies the environment overlay, then
// normalizes and validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()
	name := "config"
	if strings.TrimSpace(path) != "" {
		name = filepath.Base(path)
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", name, err)
		}
	}
	var e Env
	if err := ParseEnv(&e); err != nil {
		return cfg, err
	}
	if err := cfg.Apply(e); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		DataDir:         "./data",
		WorldID:         "default",
		EnableAdminHTTP: true,
		Messages:        notify.DefaultMessages(),
	}
}

// Apply overlays non-empty environment values.
func (c *Config) Apply(e Env) error {
	if v := strings.TrimSpace(e.Addr); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(e.DataDir); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(e.AdminToken); v != "" {
		c.AdminToken = v
	}
	if v := strings.TrimSpace(e.EnableAdminHTTP); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ACH_ENABLE_ADMIN_HTTP: %w", err)
		}
		c.EnableAdminHTTP = b
	}
	if len(e.AllowedOrigins) > 0 {
		c.AllowedOrigins = e.AllowedOrigins
	}
	return nil
}

func (c *Config) Normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.WorldID = strings.TrimSpace(c.WorldID)
	c.AdminToken = strings.TrimSpace(c.AdminToken)
	if strings.TrimSpace(c.Database) == "" {
		c.Database = filepath.Join(c.DataDir, "achievements.sqlite")
	}
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
	c.Messages.Normalize()
	for i := range c.Roster.Subjects {
		if c.Roster.Subjects[i].Kind == "" {
			c.Roster.Subjects[i].Kind = roster.KindCharacter
		}
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.WorldID == "" || strings.IndexFunc(c.WorldID, unicode.IsSpace) >= 0 {
		return fmt.Errorf("invalid world_id %q", c.WorldID)
	}

	reg := settings.NewRegistry()
	if err := settings.RegisterDefaults(reg); err != nil {
		return err
	}
	for _, k := range settings.SortedKeys(c.Defaults) {
		s, ok := reg.Lookup(k)
		if !ok {
			return fmt.Errorf("defaults: unknown key %q", k)
		}
		if !s.Config {
			return fmt.Errorf("defaults: %q is not configurable", k)
		}
		if err := reg.SetDefault(k, c.Defaults[k]); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
	}

	users := map[string]bool{}
	for _, u := range c.Roster.Users {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("roster: user with empty id")
		}
		if users[u.ID] {
			return fmt.Errorf("roster: duplicate user %q", u.ID)
		}
		users[u.ID] = true
	}
	subjects := map[string]bool{}
	for _, s := range c.Roster.Subjects {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("roster: subject with empty id")
		}
		if subjects[s.ID] {
			return fmt.Errorf("roster: duplicate subject %q", s.ID)
		}
		if s.Kind != roster.KindCharacter && s.Kind != roster.KindNPC {
			return fmt.Errorf("roster: subject %q: unknown kind %q", s.ID, s.Kind)
		}
		subjects[s.ID] = true
	}
	for _, u := range c.Roster.Users {
		if u.Character != "" && !subjects[u.Character] {
			return fmt.Errorf("roster: user %q plays unknown subject %q", u.ID, u.Character)
		}
	}
	return nil
}

// WorldDir is where the world's logs and backups live.
func (c Config) WorldDir() string {
	return filepath.Join(c.DataDir, "worlds", c.WorldID)
}

// IndexPath is the world's SQLite audit index.
func (c Config) IndexPath() string {
	return filepath.Join(c.WorldDir(), "index.sqlite")
}
