package zatca

import (
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca")

// Config is the single source of settings handed to component constructors.
type Config struct {
	EnvironmentName string        `env:"ZATCA_ENV,default=sandbox"`
	Language        string        `env:"ZATCA_LANGUAGE,default=en"`
	HTTPTimeout     time.Duration `env:"ZATCA_HTTP_TIMEOUT,default=30s"`
	LogLevel        string        `env:"ZATCA_LOG_LEVEL,default=info"`

	// Environment is resolved from EnvironmentName by Validate.
	Environment Environment

	// Optional template overrides, embedded defaults are used when empty.
	CSRTemplatePath       string `env:"ZATCA_CSR_TEMPLATE"`
	UBLTemplatePath       string `env:"ZATCA_UBL_TEMPLATE"`
	SignatureTemplatePath string `env:"ZATCA_SIGNATURE_TEMPLATE"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		EnvironmentName: Sandbox.Name(),
		Environment:     Sandbox,
		Language:        "en",
		HTTPTimeout:     30 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, errors.Wrap(err, "load config from environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings and resolves the environment name.
func (c *Config) Validate() error {
	if c.EnvironmentName != "" {
		if err := c.Environment.UnmarshalText([]byte(c.EnvironmentName)); err != nil {
			return Validation("config", err)
		}
	}
	if !c.Environment.Valid() {
		return Validation("config", errors.Errorf("unknown environment %d", int(c.Environment)))
	}
	if c.HTTPTimeout <= 0 {
		return Validation("config", errors.New("ZATCA_HTTP_TIMEOUT must be positive"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return Validation("config", err)
	}
	return nil
}

// ConfigureLogging applies the configured level to the standard logrus logger.
func (c *Config) ConfigureLogging(debug bool) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logger.Debugf("environment %s, gateway %s", c.Environment, c.Environment.BaseURL())
}
