package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
	"github.com/felixgeelhaar/sciencepoint/internal/credential"
	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/tui"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

// promptLogin is swapped out in tests.
var (
	promptLogin  = tui.PromptLogin
	shouldPrompt = tui.ShouldPrompt
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign out and inspect the session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and save the session",
	Long: `Sign in to the coaching-center backend.

Without --username or --password an interactive form is shown. In scripts
pass the password on stdin:

  echo "$PASSWORD" | sciencepoint auth login -u ravi --password-stdin`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and clear saved credentials",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  runStatus,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Check the session with the server and reload the profile",
	RunE:  runRefresh,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the signed-in user's profile",
	RunE:  runWhoami,
}

var canCmd = &cobra.Command{
	Use:   "can <role>...",
	Short: "Exit 0 if the signed-in user may act in one of the roles",
	Example: `  sciencepoint auth can teacher
  sciencepoint auth can teacher student`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCan,
}

func init() {
	loginCmd.Flags().StringP("username", "u", "", "account username")
	loginCmd.Flags().StringP("password", "p", "", "account password (prefer --password-stdin)")
	loginCmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	loginCmd.Flags().Bool("remember-me", false, "ask the server for a long-lived session")

	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd, refreshCmd, whoamiCmd, canCmd)
	rootCmd.AddCommand(authCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	rememberMe, _ := cmd.Flags().GetBool("remember-me")

	if fromStdin {
		if password != "" {
			return fmt.Errorf("--password and --password-stdin are mutually exclusive")
		}
		p, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		password = p
	}

	fields := tui.LoginFields{Username: username, Password: password, RememberMe: rememberMe}
	if (fields.Username == "" || fields.Password == "") && shouldPrompt() {
		filled, err := promptLogin(fields)
		if err != nil {
			return err
		}
		fields = filled
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.restore(cmd.Context())
	profile, err := a.controller.Login(cmd.Context(), fields.Input(), fields.RememberMe)
	if err != nil {
		return err
	}
	if !a.controller.State().IsAuthenticated {
		return errors.NewSessionNotKeptError()
	}

	if a.cctx.Text() {
		return nil
	}
	return a.cctx.Output(cmd, profile)
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.restore(cmd.Context())
	if !a.controller.Logout(auth.ReasonUser) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Not logged in.")
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.restore(cmd.Context())
	if a.cctx.Text() {
		return a.cctx.Output(cmd, statusFields(state))
	}
	return a.cctx.Output(cmd, state)
}

func statusFields(state auth.SessionState) ux.Fields {
	if !state.IsAuthenticated || state.User == nil {
		return ux.Fields{{Label: "Status", Value: "not logged in"}}
	}
	u := state.User
	fields := ux.Fields{
		{Label: "Status", Value: "logged in"},
		{Label: "User", Value: u.Username},
		{Label: "Name", Value: u.DisplayName()},
		{Label: "Role", Value: u.Role.String()},
		{Label: "Expires in", Value: credential.FormatRemaining(state.TimeRemaining)},
		{Label: "Remember me", Value: yesNo(state.RememberMe)},
	}
	if state.WarningShown {
		fields = append(fields, ux.Field{Label: "Warning", Value: "expiry warning already shown"})
	}
	return fields
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.requireSession(cmd.Context()); err != nil {
		return err
	}
	if !a.controller.RefreshSession(cmd.Context()) {
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
		return errors.New(errors.ErrCodeRefreshFailed, "Could not extend your session").
			WithSuggestion("Run 'sciencepoint auth login' to sign in again")
	}
	if a.cctx.Text() {
		return nil
	}
	return a.cctx.Output(cmd, a.controller.State())
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.requireSession(cmd.Context())
	if err != nil {
		return err
	}
	if a.cctx.Text() {
		return a.cctx.Output(cmd, profileFields(*state.User))
	}
	return a.cctx.Output(cmd, state.User)
}

func profileFields(p domain.Profile) ux.Fields {
	fields := ux.Fields{
		{Label: "ID", Value: fmt.Sprint(p.ID)},
		{Label: "Username", Value: p.Username},
		{Label: "Name", Value: p.DisplayName()},
		{Label: "Email", Value: p.Email},
		{Label: "Role", Value: p.Role.String()},
		{Label: "Active", Value: yesNo(p.IsActive)},
	}
	if p.RollNumber != "" {
		fields = append(fields, ux.Field{Label: "Roll number", Value: p.RollNumber})
	}
	if p.EmployeeID != "" {
		fields = append(fields, ux.Field{Label: "Employee ID", Value: p.EmployeeID})
	}
	return fields
}

func runCan(cmd *cobra.Command, args []string) error {
	roles := make([]domain.Role, 0, len(args))
	for _, arg := range args {
		r, err := domain.NewRole(strings.ToLower(arg))
		if err != nil {
			return fmt.Errorf("invalid argument: %w", err)
		}
		roles = append(roles, r)
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.requireSession(cmd.Context()); err != nil {
		return err
	}
	if !a.controller.HasPermission(roles...) {
		return errors.New(errors.ErrCodePermissionDenied,
			fmt.Sprintf("not permitted as %s", strings.Join(args, " or ")))
	}
	if a.cctx.Text() {
		fmt.Fprintln(cmd.OutOrStdout(), "allowed")
		return nil
	}
	return a.cctx.Output(cmd, map[string]bool{"allowed": true})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
