// Package mlflow is a thin MLflow tracking client used when a run is
// started with tracking enabled. It speaks to either a Databricks
// workspace or a plain MLflow server through the Databricks SDK.
package mlflow

import (
	"fmt"

	"github.com/databricks/databricks-sdk-go"

	"github.com/pokered-rl/trainctl/internal/config"
)

type Client struct {
	client *databricks.WorkspaceClient
	config *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.ValidateTracking(); err != nil {
		return nil, fmt.Errorf("invalid tracking config: %w", err)
	}

	sdkConfig, err := sdkConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	client, err := databricks.NewWorkspaceClient(sdkConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}

	return &Client{client: client, config: cfg}, nil
}

// sdkConfigFor maps the tracking URI onto SDK credentials. Accepted
// forms: "databricks" (host from DATABRICKS_HOST), "databricks://{profile}",
// a full Databricks URL, or a plain MLflow server URL.
func sdkConfigFor(cfg *config.Config) (*databricks.Config, error) {
	if !cfg.IsDatabricks() {
		return &databricks.Config{
			Host: cfg.TrackingURI,
			// plain MLflow servers do not authenticate; the SDK still
			// insists on a token
			Token: "unauthenticated",
		}, nil
	}

	sdk := &databricks.Config{}
	switch {
	case cfg.TrackingURI == "databricks":
		sdk.Host = cfg.DatabricksHost
	default:
		if profile := cfg.GetDatabricksProfile(); profile != "" {
			sdk.Profile = profile
		} else {
			sdk.Host = cfg.TrackingURI
		}
	}
	if cfg.DatabricksToken != "" {
		sdk.Token = cfg.DatabricksToken
	}

	if sdk.Host == "" && sdk.Profile == "" {
		return nil, fmt.Errorf("tracking URI %q needs a Databricks host or profile: set DATABRICKS_HOST, use a full workspace URL, or databricks://{profile}", cfg.TrackingURI)
	}
	return sdk, nil
}
