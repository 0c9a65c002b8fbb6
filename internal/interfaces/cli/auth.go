package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"garagelink.app/client/internal/auth"
)

// newLoginCommand creates the login command
func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Example: `  garagelink login --email dana@example.com --password-stdin < pass.txt
  garagelink --identity mechanic-app login --email sam@example.com --password s3cret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("email is required")
			}
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password is required (use --password or --password-stdin)")
			}

			user, err := a.container.Session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Signed in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// newLogoutCommand creates the logout command
func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.container.Session.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			a.container.Session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "👋 Signed out")
			return nil
		},
	}
}

// newStatusCommand creates the status command
func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			state, err := a.container.Session.State(ctx)
			if err != nil {
				return err
			}

			view := statusView{
				Identity: a.container.Config.App.Identity,
				Endpoint: a.container.Config.API.BaseURL,
				Signed:   state.Authenticated,
				Now:      time.Now(),
			}
			if state.Credentials != nil {
				view.UserID = state.Credentials.UserID
				view.Verdict = a.container.Validator.Assess(state.Credentials.AccessToken)
				if claims, err := auth.Decode(state.Credentials.AccessToken); err == nil {
					view.ExpiresAt = claims.ExpiresAt
				}
			}
			if user, err := a.container.Tokens.ReadUser(ctx); err == nil && user != nil {
				view.UserName = user.Name
				view.Role = string(user.Role)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(view))
			return nil
		},
	}
}

// newRefreshCommand creates the refresh command
func newRefreshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the session tokens now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.container.Session.IsAuthenticated() {
				return fmt.Errorf("not signed in")
			}
			token, err := a.container.Coordinator.RequestRefresh(cmd.Context(), "")
			if err != nil {
				return err
			}

			msg := "🔄 Session refreshed"
			if claims, err := auth.Decode(token); err == nil {
				msg += fmt.Sprintf(", valid until %s", claims.ExpiresAt.Local().Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
