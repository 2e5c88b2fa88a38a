package cmd

import (
	"context"
	stderrors "errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/metrics"
	"github.com/felixgeelhaar/sciencepoint/internal/tui"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work with the saved session",
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session open and warn before it expires",
	Long: `Watch the saved session in a full-screen view.

The credential is checked on the configured poll interval. When it gets
close to expiry a warning with a live countdown is shown: press r to extend
the session or l to log out. The view closes when the session ends.`,
	RunE: runSessionWatch,
}

func init() {
	sessionWatchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	sessionCmd.AddCommand(sessionWatchCmd)
	rootCmd.AddCommand(sessionCmd)
}

// runProgram is swapped out in tests.
var runProgram = func(ctx context.Context, cmd *cobra.Command, model tea.Model) error {
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}

func runSessionWatch(cmd *cobra.Command, _ []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	surface := tui.NewSurface()
	defer surface.Close()

	a, err := newApp(cmd, appOptions{
		notifier:      surface,
		surface:       surface,
		observer:      surface.Observe,
		exportMetrics: metricsAddr != "",
	})
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.restore(cmd.Context())
	if !state.IsAuthenticated {
		return errors.NewNotAuthenticatedError()
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	ctx, stop := context.WithCancel(ctx)

	if metricsAddr != "" {
		a.logger.Info("serving metrics", "addr", metricsAddr)
		g.Go(func() error {
			if err := metrics.Serve(ctx, metricsAddr, a.registry); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stop()
		defer surface.Close()
		model := tui.NewModel(ctx, state, tui.Actions{
			Refresh: a.controller.RefreshSession,
			Logout:  func() { a.controller.Logout(auth.ReasonUser) },
		}, tui.WithEvents(surface))
		return runProgram(ctx, cmd, model)
	})

	err = g.Wait()
	stop()

	// The full-screen view is gone by now, so repeat how the session ended.
	if !a.controller.State().IsAuthenticated {
		if n, ok := surface.LastNotice(); ok {
			ux.NewNoticeWriter(cmd.ErrOrStderr(), a.cctx.NoColor).Notify(n)
		}
	}
	if stderrors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
		return cmd.Context().Err()
	}
	return err
}
