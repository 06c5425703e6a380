// Package config loads chost settings from ~/.chost/config.yaml and
// CHOST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/joss/chost/internal/transport"
	"github.com/joss/chost/pkg/cohost"
)

// EnvPrefix is prepended to every environment override, e.g. CHOST_EMAIL.
const EnvPrefix = "CHOST"

// Config holds everything the CLI needs to build a client.
type Config struct {
	// BaseURL is the Cohost API root (CHOST_BASE_URL)
	BaseURL string `mapstructure:"base_url"`

	// Email is the default login email (CHOST_EMAIL)
	Email string `mapstructure:"email"`

	// CookieFile is where the session cookie jar lives (CHOST_COOKIE_FILE)
	CookieFile string `mapstructure:"cookie_file"`

	// Timeout bounds each request (CHOST_TIMEOUT), e.g. "15s"
	Timeout time.Duration `mapstructure:"timeout"`

	// LogLevel is debug, info, warn, error or off (CHOST_LOG_LEVEL)
	LogLevel string `mapstructure:"log_level"`

	// DataDir holds the local cache database (CHOST_DATA_DIR)
	DataDir string `mapstructure:"data_dir"`
}

// CacheDB returns the path of the sqlite cache inside DataDir.
func (c *Config) CacheDB() string {
	return filepath.Join(c.DataDir, "cache.db")
}

var (
	cfg     *Config
	cfgErr  error
	cfgOnce sync.Once
)

// Load reads the config file at path, or ~/.chost/config.yaml when path is
// empty, and applies environment overrides. A missing default file is not an
// error. Loads once; later calls return the first result.
func Load(path string) (*Config, error) {
	cfgOnce.Do(func() {
		cfg, cfgErr = load(path)
	})
	return cfg, cfgErr
}

// Reset clears the cached configuration and paths (for testing).
func Reset() {
	cfgOnce = sync.Once{}
	cfg, cfgErr = nil, nil
	pathsOnce = sync.Once{}
	paths = nil
}

func load(path string) (*Config, error) {
	p := GetPaths()
	v := viper.New()

	v.SetDefault("base_url", cohost.DefaultBaseURL)
	v.SetDefault("email", "")
	v.SetDefault("cookie_file", p.CookieFile)
	v.SetDefault("timeout", transport.DefaultTimeout)
	v.SetDefault("log_level", "warn")
	v.SetDefault("data_dir", p.Data)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(p.ConfigFile)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path == "" && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return &c, nil
}

// Paths holds standard chost file locations.
type Paths struct {
	// Home is the chost home directory (~/.chost, or CHOST_HOME)
	Home string

	// Data is the data directory (~/.chost/data)
	Data string

	// ConfigFile is the default config file (~/.chost/config.yaml)
	ConfigFile string

	// CookieFile is the default cookie jar (~/.chost/cookies.txt)
	CookieFile string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home := os.Getenv(EnvPrefix + "_HOME")
		if home == "" {
			userHome, err := os.UserHomeDir()
			if err != nil {
				userHome = "."
			}
			home = filepath.Join(userHome, ".chost")
		}

		paths = &Paths{
			Home:       home,
			Data:       filepath.Join(home, "data"),
			ConfigFile: filepath.Join(home, "config.yaml"),
			CookieFile: filepath.Join(home, "cookies.txt"),
		}
	})
	return paths
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}
