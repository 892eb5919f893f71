package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/jwtgate"
	"github.com/MrEthical07/jwtgate/httpapi"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// appConfig is the engine configuration plus the server section. Engine keys
// sit at the top level of the file.
type appConfig struct {
	jwtgate.Config `yaml:",inline"`
	Server         serverConfig `yaml:"server"`
}

type serverConfig struct {
	Addr            string                    `yaml:"addr"`
	MetricsPath     string                    `yaml:"metrics_path"`
	ShutdownTimeout time.Duration             `yaml:"shutdown_timeout"`
	Users           httpapi.StaticCredentials `yaml:"users"`
	LoginLimit      loginLimitConfig          `yaml:"login_limit"`
}

// loginLimitConfig throttles failed logins with Redis counters at
// Store.RedisAddr, whichever store backend is selected.
type loginLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Cooldown    time.Duration `yaml:"cooldown"`
	PerIP       bool          `yaml:"per_ip"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Config: jwtgate.DefaultConfig(),
		Server: serverConfig{
			Addr:            ":8080",
			MetricsPath:     "/metrics",
			ShutdownTimeout: 10 * time.Second,
			LoginLimit: loginLimitConfig{
				MaxAttempts: 5,
				Cooldown:    15 * time.Minute,
			},
		},
	}
}

// loadAppConfig reads path (when set) over the defaults, then applies the
// environment found by lookup, then validates.
func loadAppConfig(path string, lookup func(string) (string, bool)) (appConfig, error) {
	cfg := defaultAppConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.Config.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	if err := cfg.Server.applyEnv(lookup); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (s *serverConfig) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	if v, ok := lookup(jwtgate.EnvPrefix + "SERVER_ADDR"); ok {
		s.Addr = strings.TrimSpace(v)
	}
	if v, ok := lookup(jwtgate.EnvPrefix + "SERVER_METRICS_PATH"); ok {
		s.MetricsPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(jwtgate.EnvPrefix + "LOGIN_LIMIT_ENABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sLOGIN_LIMIT_ENABLED: %w", jwtgate.EnvPrefix, err))
		} else {
			s.LoginLimit.Enabled = b
		}
	}
	return errors.Join(errs...)
}

func (c *appConfig) validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("Server Addr is required")
	}
	if c.Server.MetricsPath != "" && !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return errors.New("Server MetricsPath must start with /")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("Server ShutdownTimeout must be >= 0")
	}
	for name, user := range c.Server.Users {
		if name == "" || user.Password == "" {
			return errors.New("Server Users entries need a username and a password")
		}
	}
	if c.Server.LoginLimit.Enabled {
		if c.Server.LoginLimit.MaxAttempts <= 0 {
			return errors.New("Server LoginLimit MaxAttempts must be > 0")
		}
		if c.Server.LoginLimit.Cooldown <= 0 {
			return errors.New("Server LoginLimit Cooldown must be > 0")
		}
		if c.Store.RedisAddr == "" {
			return errors.New("Server LoginLimit requires Store RedisAddr")
		}
	}
	return nil
}

// redacted returns a copy safe to print.
func (c appConfig) redacted() appConfig {
	out := c
	if out.JWT.Secret != "" {
		out.JWT.Secret = "<redacted>"
	}
	if out.Store.RedisPassword != "" {
		out.Store.RedisPassword = "<redacted>"
	}
	if out.Store.PostgresDSN != "" {
		out.Store.PostgresDSN = "<redacted>"
	}
	if len(c.Server.Users) > 0 {
		out.Server.Users = make(httpapi.StaticCredentials, len(c.Server.Users))
		for name, user := range c.Server.Users {
			user.Password = "<redacted>"
			out.Server.Users[name] = user
		}
	}
	return out
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadAppConfig(flags.configPath, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(flags.configPath, nil)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.redacted()); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	})

	return cmd
}
