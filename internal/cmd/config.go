package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sciencepoint/internal/config"
	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit sciencepoint configuration",
	Long: `Manage configuration stored at ~/.sciencepoint/config.yaml

Examples:
  # View current configuration
  sciencepoint config view

  # Get a specific value
  sciencepoint config get session.warning_threshold

  # Set a specific value
  sciencepoint config set api.base_url https://coaching.example.com

  # Show configuration file path
  sciencepoint config path
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display current configuration",
	RunE:  runConfigView,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration in $EDITOR",
	RunE:  runConfigEdit,
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Get a specific configuration value",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE:      runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a specific configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, _ []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cctx.LoadConfig()
	if err != nil {
		return err
	}
	if cctx.Text() {
		fields := make(ux.Fields, 0, len(config.Keys()))
		for _, key := range config.Keys() {
			v, _ := cfg.Get(key)
			if strings.HasSuffix(key, "password") && v != "" {
				v = "********"
			}
			fields = append(fields, ux.Field{Label: key, Value: v})
		}
		return cctx.Output(cmd, fields)
	}
	return cctx.Output(cmd, cfg)
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path, err := cctx.ResolveConfigPath()
	if err != nil {
		return err
	}

	// Make sure there is something to edit.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	c := exec.Command(editor, path) // #nosec G204 -- editor comes from the user's environment
	c.Stdin = cmd.InOrStdin()
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return fmt.Errorf("editor exited: %w", err)
	}

	if _, err := config.Load(path); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "configuration is invalid after editing", err).
			WithSuggestion("Run 'sciencepoint config edit' again to fix it")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cctx.LoadConfig()
	if err != nil {
		return err
	}
	v, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path, err := cctx.ResolveConfigPath()
	if err != nil {
		return err
	}
	// Flag overrides must not leak into the saved file.
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Set %s = %s\n", args[0], args[1])
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path, err := cctx.ResolveConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
