package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/superplanehq/gauth/pkg/gcp/common"
	"github.com/superplanehq/gauth/pkg/retry"
)

const EnvPrefix = "GAUTH"

const (
	KeyCredentials      = "credentials"
	KeyProject          = "project"
	KeyAudience         = "audience"
	KeyEndpoint         = "endpoint"
	KeyLocation         = "location"
	KeyPollBaseDelay    = "poll.base_delay"
	KeyPollMaxAttempts  = "poll.max_attempts"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	maxPollMaxAttempts  = 30
	defaultConfigFolder = "gauth"
)

type Config struct {
	Credentials string `mapstructure:"credentials"`
	Project     string `mapstructure:"project"`
	Audience    string `mapstructure:"audience"`
	Endpoint    string `mapstructure:"endpoint"`
	Location    string `mapstructure:"location"`
	Poll        Poll   `mapstructure:"poll"`
	Log         Log    `mapstructure:"log"`
}

type Poll struct {
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c *Config) Poller() *retry.Poller {
	return retry.NewPoller(c.Poll.BaseDelay, c.Poll.MaxAttempts)
}

// New returns a viper instance with defaults and GAUTH_* environment
// bindings. Nested keys map to GAUTH_POLL_BASE_DELAY and so on.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyCredentials, "")
	v.SetDefault(KeyProject, "")
	v.SetDefault(KeyAudience, "")
	v.SetDefault(KeyEndpoint, common.DefaultBigQueryURL)
	v.SetDefault(KeyLocation, common.DefaultLocation)
	v.SetDefault(KeyPollBaseDelay, retry.DefaultBaseDelay)
	v.SetDefault(KeyPollMaxAttempts, retry.DefaultMaxAttempts)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	return v
}

// ReadFile loads path, or the default config.yaml under ~/.config/gauth
// when path is empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", expanded, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".config", defaultConfigFolder))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Poll.BaseDelay <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyPollBaseDelay, c.Poll.BaseDelay)
	}
	if c.Poll.MaxAttempts <= 0 || c.Poll.MaxAttempts > maxPollMaxAttempts {
		return fmt.Errorf("%s must be between 1 and %d, got %d", KeyPollMaxAttempts, maxPollMaxAttempts, c.Poll.MaxAttempts)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("%s must not be empty", KeyEndpoint)
	}
	return nil
}
