package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// databricksDomains are the workspace URL suffixes across clouds.
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Config is the process-level configuration resolved from flags and
// environment variables. Training-run settings live in EnvConfig and
// TrainConfig; this covers the daemon and the tracking client.
type Config struct {
	RunsDir  string
	Host     string
	Port     int
	LogLevel string

	TrackingURI     string
	ExperimentName  string
	DatabricksHost  string
	DatabricksToken string
}

func New() *Config {
	return &Config{
		RunsDir:         viper.GetString("runs_dir"),
		Host:            viper.GetString("host"),
		Port:            viper.GetInt("port"),
		LogLevel:        viper.GetString("log_level"),
		TrackingURI:     viper.GetString("tracking_uri"),
		ExperimentName:  viper.GetString("experiment_name"),
		DatabricksHost:  viper.GetString("databricks_host"),
		DatabricksToken: viper.GetString("databricks_token"),
	}
}

func (c *Config) Validate() error {
	if c.RunsDir == "" {
		return fmt.Errorf("runs directory is required")
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	return nil
}

// ValidateTracking checks the fields the tracking client needs. Only
// called when experiment tracking is enabled.
func (c *Config) ValidateTracking() error {
	if c.TrackingURI == "" {
		return fmt.Errorf("tracking URI is required")
	}
	if c.ExperimentName == "" {
		return fmt.Errorf("experiment name is required")
	}
	return nil
}

// IsDatabricks reports whether the tracking URI names a Databricks
// workspace: the literal "databricks", a databricks://{profile} URI,
// or an https URL under a known workspace domain.
func (c *Config) IsDatabricks() bool {
	switch {
	case c.TrackingURI == "databricks",
		strings.HasPrefix(c.TrackingURI, "databricks://"):
		return true
	case strings.HasPrefix(c.TrackingURI, "https://"):
		u, err := url.Parse(c.TrackingURI)
		if err != nil {
			return false
		}
		for _, domain := range databricksDomains {
			if strings.HasSuffix(u.Hostname(), domain) {
				return true
			}
		}
	}
	return false
}

// GetDatabricksProfile returns the profile from a databricks://{profile}
// URI, or "" for every other form.
func (c *Config) GetDatabricksProfile() string {
	rest, ok := strings.CutPrefix(c.TrackingURI, "databricks://")
	if !ok {
		return ""
	}
	profile, _, _ := strings.Cut(rest, "/")
	return profile
}
