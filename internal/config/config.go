package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRACKER_"

// Config represents the application configuration
type Config struct {
	Server struct {
		Port       int           `koanf:"port"`
		JWTSecret  string        `koanf:"jwt_secret"`
		TokenTTL   time.Duration `koanf:"token_ttl"`
		LoginRate  float64       `koanf:"login_rate"`
		LoginBurst int           `koanf:"login_burst"`
	} `koanf:"server"`

	Database struct {
		Path string `koanf:"path"`
	} `koanf:"database"`

	Auth struct {
		UsersSource  string        `koanf:"users_source"`
		CacheTTL     time.Duration `koanf:"cache_ttl"`
		FetchTimeout time.Duration `koanf:"fetch_timeout"`
	} `koanf:"auth"`

	Mail Mail `koanf:"mail"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
}

// Mail holds SMTP settings and the static owner address book
type Mail struct {
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Secure   bool              `koanf:"secure"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	From     string            `koanf:"from"`
	Admin    string            `koanf:"admin"`
	Timeout  time.Duration     `koanf:"timeout"`
	Owners   map[string]string `koanf:"owners"`
}

var defaults = map[string]interface{}{
	"server.port":        4000,
	"server.jwt_secret":  "dev_secret_change_me",
	"server.token_ttl":   "8h",
	"server.login_rate":  5.0,
	"server.login_burst": 10,
	"auth.cache_ttl":     "5m",
	"auth.fetch_timeout": "15s",
	"mail.port":          587,
	"mail.timeout":       "10s",
	"log.level":          "info",
	"log.format":         "console",
}

// Load builds the configuration from defaults, an optional TOML file and
// TRACKER_* environment variables, in that order of precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	owners := make(map[string]string, len(cfg.Mail.Owners))
	for name, addr := range cfg.Mail.Owners {
		owners[strings.ToUpper(strings.TrimSpace(name))] = addr
	}
	cfg.Mail.Owners = owners

	return &cfg, nil
}

// envKey maps TRACKER_SERVER_JWT_SECRET to server.jwt_secret and
// TRACKER_MAIL_OWNERS_MIKI to mail.owners.miki
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	if section == "mail" && strings.HasPrefix(rest, "owners_") {
		return "mail.owners." + strings.TrimPrefix(rest, "owners_")
	}
	return section + "." + rest
}

// DatabasePath returns the configured database path or the default location
// under the XDG data directory, creating the parent directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.Database.Path), 0755); err != nil {
			return "", err
		}
		return c.Database.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tracker.db"), nil
}

// DataDir returns the application data directory, creating it if needed
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	appDir := filepath.Join(dataDir, "tracker")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}
	return appDir, nil
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Server.TokenTTL <= 0 {
		return fmt.Errorf("server.token_ttl must be positive")
	}
	if cfg.Auth.CacheTTL < 0 {
		return fmt.Errorf("auth.cache_ttl must not be negative")
	}
	if cfg.Mail.Host != "" && cfg.Mail.From == "" {
		return fmt.Errorf("mail.from is required when mail.host is set")
	}
	return nil
}

// Init writes a sample configuration file
func Init(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# Task tracker configuration

[server]
port = 4000
jwt_secret = "change-me"
token_ttl = "8h"

[database]
# path = "/var/lib/tracker/tracker.db"

[auth]
# JSON user directory, local path or http(s) URL
users_source = "users.json"
cache_ttl = "5m"

[mail]
host = "smtp.example.com"
port = 587
from = "tracker@example.com"
admin = "admin@example.com"

[mail.owners]
MIKI = "miki@example.com"

[log]
level = "info"
format = "console"
`
	return os.WriteFile(configPath, []byte(sample), 0644)
}
