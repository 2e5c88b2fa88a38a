package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sciencepoint/internal/config"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

// CommandContext holds the persistent flags of one invocation.
type CommandContext struct {
	ConfigPath string
	APIURL     string
	LogLevel   string
	Format     string
	NoColor    bool
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		ConfigPath: configPath,
		APIURL:     apiURL,
		LogLevel:   logLevel,
		Format:     format,
		NoColor:    noColor,
	}, nil
}

// ResolveConfigPath returns the --config value or the default location.
func (c *CommandContext) ResolveConfigPath() (string, error) {
	if c.ConfigPath != "" {
		return c.ConfigPath, nil
	}
	return config.Path()
}

// LoadConfig loads the configuration file with flag overrides applied.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	path, err := c.ResolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.APIURL != "" {
		if err := cfg.Set("api.base_url", c.APIURL); err != nil {
			return nil, err
		}
	}
	if c.LogLevel != "" {
		if err := cfg.Set("logging.level", c.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Output writes data to the command's stdout in the selected format.
func (c *CommandContext) Output(cmd *cobra.Command, data any) error {
	formatter, err := ux.NewFormatter(c.Format, &ux.FormatterOptions{
		Writer:  cmd.OutOrStdout(),
		NoColor: c.NoColor,
	})
	if err != nil {
		return err
	}
	return formatter.Format(data)
}

// Text reports whether human-readable output was requested.
func (c *CommandContext) Text() bool {
	return c.Format == "" || c.Format == "text"
}
