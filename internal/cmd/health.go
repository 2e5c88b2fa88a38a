package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/health"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/session"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the backend, the session store and the saved session",
	Long: `Run the client's health checks:

  backend-api     GET /health on the configured backend
  session-store   write, read and remove a probe value
  saved-session   whether the saved credential is still valid

Exits non-zero when any check is unhealthy.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// healthReport is the json/yaml shape of the health command.
type healthReport struct {
	Status health.Status    `json:"status" yaml:"status"`
	Checks []*health.Result `json:"checks" yaml:"checks"`
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cctx.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	// components built here log through the process default set above
	client := platform.NewClient(cfg.API.BaseURL, platform.WithTimeout(cfg.API.Timeout))
	manager := health.NewManager(health.NewAPIChecker(client, client.BaseURL())).
		WithTimeout(cfg.API.Timeout)

	backend, closer, err := openStorage(cfg, logger)
	if err != nil {
		manager.Add(failedChecker{name: "session-store", err: err})
	} else {
		if closer != nil {
			defer func() { _ = closer() }()
		}
		manager.Add(health.NewStorageChecker(backend, cfg.Storage.Backend))
		manager.Add(health.NewSessionChecker(session.NewStore(backend, nil), cfg.Session.WarningThreshold, nil))
	}

	results := manager.Check(cmd.Context())
	report := healthReport{Status: health.Overall(results), Checks: results}

	if cctx.Text() {
		fields := ux.Fields{{Label: "Overall", Value: string(report.Status)}}
		for _, r := range results {
			fields = append(fields, ux.Field{Label: r.Name, Value: fmt.Sprintf("%s: %s", r.Status, r.Message)})
		}
		if err := cctx.Output(cmd, fields); err != nil {
			return err
		}
	} else if err := cctx.Output(cmd, report); err != nil {
		return err
	}

	if report.Status == health.StatusUnhealthy {
		return unhealthyError(results)
	}
	return nil
}

// unhealthyError picks the error for the first unhealthy check.
func unhealthyError(results []*health.Result) error {
	for _, r := range results {
		if r.Status != health.StatusUnhealthy {
			continue
		}
		switch r.Name {
		case "backend-api":
			return errors.New(errors.ErrCodeServiceUnavailable, "The backend is not healthy: "+r.Message).
				WithSuggestion("Check the configured API base URL: sciencepoint config get api.base_url")
		default:
			return errors.New(errors.ErrCodeStoreBackend, "The session store is not usable: "+r.Message).
				WithSuggestion("Check the storage.* settings: sciencepoint config view")
		}
	}
	return nil
}

// failedChecker reports an error that happened before checking could start.
type failedChecker struct {
	name string
	err  error
}

func (c failedChecker) Name() string { return c.name }

func (c failedChecker) Check(context.Context) *health.Result {
	return health.Unhealthy(errors.UserMessage(c.err)).WithDetail("error", c.err.Error())
}
