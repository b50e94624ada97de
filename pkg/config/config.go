// Package config loads runner settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/models"
	"dev/bravebird/login-scenarios/pkg/scenario"
)

// EnvPrefix is prepended to every environment override, e.g.
// SCENARIO_BROWSER_HEADLESS=false.
const EnvPrefix = "SCENARIO"

// Executors accepted by the executor setting
const (
	ExecutorLocal    = "local"
	ExecutorTemporal = "temporal"
)

// Config is the complete runner configuration
type Config struct {
	BaseURL         string        `mapstructure:"base_url"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	InvalidUsername string        `mapstructure:"invalid_username"`
	InvalidPassword string        `mapstructure:"invalid_password"`
	Browser         BrowserConfig `mapstructure:"browser"`
	ScreenshotDir   string        `mapstructure:"screenshot_dir"`
	// ScenarioFile replaces the built-in login suite when set
	ScenarioFile string    `mapstructure:"scenario_file"`
	Parallelism  int       `mapstructure:"parallelism"`
	Log          LogConfig `mapstructure:"log"`
	MySQLDSN     string    `mapstructure:"mysql_dsn"`
	TemporalHost string    `mapstructure:"temporal_host"`
	// Executor selects where API runs execute: "local" or "temporal"
	Executor        string        `mapstructure:"executor"`
	ActivityTimeout time.Duration `mapstructure:"activity_timeout"`
	Port            string        `mapstructure:"port"`
}

type BrowserConfig struct {
	Driver          string        `mapstructure:"driver"`
	Headless        bool          `mapstructure:"headless"`
	Bin             string        `mapstructure:"bin"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	WaitForTimeout  time.Duration `mapstructure:"wait_for_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://dev.deepthought.education/login")
	v.SetDefault("username", "kedar_karche")
	v.SetDefault("password", "Kedar@123")
	v.SetDefault("invalid_username", "invalid_username")
	v.SetDefault("invalid_password", "invalid_password")

	v.SetDefault("browser.driver", browser.DriverRod)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.page_load_timeout", 30*time.Second)
	v.SetDefault("browser.wait_for_timeout", 15*time.Second)
	v.SetDefault("browser.poll_interval", 250*time.Millisecond)

	v.SetDefault("screenshot_dir", "./screenshots")
	v.SetDefault("scenario_file", "")
	v.SetDefault("parallelism", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("mysql_dsn", "")
	v.SetDefault("temporal_host", "localhost:7233")
	v.SetDefault("executor", ExecutorLocal)
	v.SetDefault("activity_timeout", time.Minute)
	v.SetDefault("port", "8080")
}

// Unprefixed variables that deployments already set
var legacyEnv = map[string]string{
	"browser.bin":    "CHROME_BIN",
	"screenshot_dir": "SCREENSHOT_DIR",
	"mysql_dsn":      "MYSQL_DSN",
	"temporal_host":  "TEMPORAL_HOST",
	"port":           "PORT",
}

// Load builds the configuration. path may be empty; when set the YAML file
// must exist. Environment variables override the file, which overrides the
// defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the runner cannot work with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	switch c.Browser.Driver {
	case browser.DriverRod, browser.DriverChromedp:
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	switch c.Executor {
	case ExecutorLocal, ExecutorTemporal:
	default:
		return fmt.Errorf("unknown executor %q", c.Executor)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	return nil
}

// Valid returns the credentials expected to log in
func (c *Config) Valid() models.Credentials {
	return models.Credentials{Username: c.Username, Password: c.Password}
}

// Vars exposes the values scenario files may reference as ${NAME}.
func (c *Config) Vars() map[string]string {
	return map[string]string{
		"BASE_URL":         c.BaseURL,
		"USERNAME":         c.Username,
		"PASSWORD":         c.Password,
		"INVALID_USERNAME": c.InvalidUsername,
		"INVALID_PASSWORD": c.InvalidPassword,
	}
}

// BrowserOptions maps the browser section onto driver options.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Driver:          c.Browser.Driver,
		Headless:        c.Browser.Headless,
		Bin:             c.Browser.Bin,
		PageLoadTimeout: c.Browser.PageLoadTimeout,
	}
}

// LoginSuite returns the built-in login suite for this configuration.
func (c *Config) LoginSuite() []models.Scenario {
	return scenario.LoginSuite(scenario.LoginConfig{
		URL:             c.BaseURL,
		Valid:           c.Valid(),
		InvalidUsername: c.InvalidUsername,
		InvalidPassword: c.InvalidPassword,
		Timeout:         c.Browser.WaitForTimeout,
	})
}

// Scenarios returns the scenarios of ScenarioFile, or the built-in login
// suite when no file is configured.
func (c *Config) Scenarios() ([]models.Scenario, error) {
	if c.ScenarioFile == "" {
		return c.LoginSuite(), nil
	}
	return scenario.LoadFile(c.ScenarioFile, c.Vars())
}
