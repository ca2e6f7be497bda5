package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sharedbox/sharedbox/internal/account"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address for the API server.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MetricsAddr is the listen address for the Prometheus metrics
	// server. Empty disables the metrics listener.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// GoogleConfig holds the OAuth application credentials used for Gmail
// and Google Calendar token refreshes.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
}

// FallbackIMAPConfig is the single IMAP account served when the store
// holds no accounts. Deployments predating multi-account support still
// run this way.
type FallbackIMAPConfig struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	UseTLS   bool   `mapstructure:"use_tls" yaml:"use_tls"`
}

// Config is the top-level application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	DatabasePath string             `mapstructure:"database_path" yaml:"database_path"`
	Google       GoogleConfig       `mapstructure:"google" yaml:"google"`
	FallbackIMAP FallbackIMAPConfig `mapstructure:"fallback_imap" yaml:"fallback_imap"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/sharedbox/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "sharedbox", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
		DatabasePath: "sharedbox.db",
		FallbackIMAP: FallbackIMAPConfig{
			Port:   993,
			UseTLS: true,
		},
	}
}

// Load reads configuration from the given YAML file using Viper,
// overlaid with SHAREDBOX_* environment variables. A missing file is not
// an error; every setting has a default or env source.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SHAREDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("database_path", "sharedbox.db")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("fallback_imap.email", "")
	v.SetDefault("fallback_imap.host", "")
	v.SetDefault("fallback_imap.port", 993)
	v.SetDefault("fallback_imap.user", "")
	v.SetDefault("fallback_imap.password", "")
	v.SetDefault("fallback_imap.use_tls", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// FallbackAccount materializes the configured fallback IMAP account.
// Returns nil when no fallback is configured at all; a partially
// configured fallback is an error so broken deployments fail loud
// instead of silently serving nothing.
func (c *Config) FallbackAccount() (*account.Account, error) {
	fb := c.FallbackIMAP
	if fb.Host == "" && fb.User == "" && fb.Password == "" && fb.Email == "" {
		return nil, nil
	}

	acct := account.Account{
		ID:       "fallback-imap",
		Provider: account.ProviderIMAP,
		Email:    fb.Email,
		IMAP: &account.IMAPCredentials{
			Host:     fb.Host,
			Port:     fb.Port,
			User:     fb.User,
			Password: fb.Password,
			UseTLS:   fb.UseTLS,
		},
	}
	if acct.Email == "" {
		acct.Email = fb.User
	}
	if !acct.IMAP.Complete() {
		return nil, fmt.Errorf("fallback IMAP account incomplete: host, user and password are all required")
	}
	return &acct, nil
}
