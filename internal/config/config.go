package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("picvault version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Facebook FacebookConfig `mapstructure:"facebook"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Browser  BrowserConfig  `mapstructure:"browser"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// FacebookConfig holds the OAuth application credentials and the Graph API
// surface. AuthURL, TokenURL and GraphURL default to the live Facebook
// endpoints and exist as overrides for tests.
type FacebookConfig struct {
	AppID       string        `mapstructure:"app_id"`
	AppSecret   string        `mapstructure:"app_secret"`
	RedirectURI string        `mapstructure:"redirect_uri"`
	Scope       string        `mapstructure:"scope"`
	AuthURL     string        `mapstructure:"auth_url"`
	TokenURL    string        `mapstructure:"token_url"`
	GraphURL    string        `mapstructure:"graph_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Region        string        `mapstructure:"region"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// BrowserConfig tunes the scripted browser flow. The waits are coarse
// readiness substitutes, not guarantees; ChallengeWait is the window left
// for manual CAPTCHA resolution before the login is re-checked.
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	PageWait      time.Duration `mapstructure:"page_wait"`
	RenderWait    time.Duration `mapstructure:"render_wait"`
	ChallengeWait time.Duration `mapstructure:"challenge_wait"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("config-file", "", "Path to an explicit config file")
	// Note: no pflag.Parse() here as it's called in main.go
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.disable_stacktrace", false)

	// Defaults of "" keep the keys visible to Unmarshal when the value
	// only arrives via the environment.
	viper.SetDefault("facebook.app_id", "")
	viper.SetDefault("facebook.app_secret", "")
	viper.SetDefault("facebook.redirect_uri", "")
	viper.SetDefault("facebook.scope", "public_profile")
	viper.SetDefault("facebook.auth_url", "")
	viper.SetDefault("facebook.token_url", "")
	viper.SetDefault("facebook.graph_url", "")
	viper.SetDefault("facebook.timeout", 10*time.Second)

	viper.SetDefault("storage.endpoint", "s3.amazonaws.com")
	viper.SetDefault("storage.access_key", "")
	viper.SetDefault("storage.secret_key", "")
	viper.SetDefault("storage.region", "")
	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.use_ssl", true)
	viper.SetDefault("storage.presign_expiry", 60*time.Second)

	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.max_sessions", 2)
	viper.SetDefault("browser.page_wait", 2*time.Second)
	viper.SetDefault("browser.render_wait", 5*time.Second)
	viper.SetDefault("browser.challenge_wait", 20*time.Second)
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("PICVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	if configFile := viper.GetString("config-file"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/picvault")

		// The config file is optional; env-only deployments are the norm.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate fails fast on missing credentials so the process never serves
// traffic with a half-configured pipeline.
func (c *Config) validate() error {
	var missing []string
	if c.Facebook.AppID == "" {
		missing = append(missing, "facebook.app_id")
	}
	if c.Facebook.AppSecret == "" {
		missing = append(missing, "facebook.app_secret")
	}
	if c.Facebook.RedirectURI == "" {
		missing = append(missing, "facebook.redirect_uri")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "storage.bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (set the PICVAULT_* environment variables or a config file)", strings.Join(missing, ", "))
	}
	if c.Browser.MaxSessions < 0 {
		return fmt.Errorf("browser.max_sessions must not be negative, got %d", c.Browser.MaxSessions)
	}
	return nil
}
