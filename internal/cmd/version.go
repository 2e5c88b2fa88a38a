package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sciencepoint/internal/ux"
	"github.com/felixgeelhaar/sciencepoint/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "show detailed version information")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	info := version.GetInfo()

	if !cctx.Text() {
		return cctx.Output(cmd, info)
	}

	out := cmd.OutOrStdout()
	if verbose {
		styles := ux.NewStyles(cctx.NoColor)
		fmt.Fprintln(out, styles.Box.Render(styles.Title.Render("sciencepoint")+"\n"+
			styles.Muted.Render("coaching-center session client")))
		fmt.Fprintln(out, info.String())
		return nil
	}

	fmt.Fprintf(out, "sciencepoint %s\n", info.Short())
	return nil
}
