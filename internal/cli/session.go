package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"callcenter/internal/storage"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				username, _ := cmd.Flags().GetString("username")
				password, _ := cmd.Flags().GetString("password")
				if username == "" {
					username = cc.Config.Username
				}
				if password == "" {
					password = cc.Config.Password
				}
				if username == "" || password == "" {
					return fmt.Errorf("username and password are required (flags or CALLCENTER_USERNAME/CALLCENTER_PASSWORD)")
				}

				user, err := cc.Auth.Login(ctx, username, password)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, user)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Logged in as %s\n", okStyle.Render("✓"), user.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringP("username", "u", "", "account username")
	cmd.Flags().StringP("password", "p", "", "account password")
	return cmd
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				if err := cc.Auth.Logout(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Logged out\n", okStyle.Render("✓"))
				return nil
			})
		},
	}
}

// NewWhoamiCmd creates the whoami command.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				user, err := requireSession(cc)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, user)
				}
				fmt.Fprintln(cmd.OutOrStdout(), user.Username)
				return nil
			})
		},
	}
}

// NewPrefsCmd creates the prefs command.
func NewPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change display preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "sidebar [on|off]",
		Short:     "Show or set the sidebar preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				if len(args) == 1 {
					var open bool
					switch args[0] {
					case "on":
						open = true
					case "off":
					default:
						return fmt.Errorf("expected on or off, got %q", args[0])
					}
					if err := cc.Store.Set(storage.KeySidebarOpen, strconv.FormatBool(open)); err != nil {
						return err
					}
				}

				open := true
				if v, ok, err := cc.Store.Get(storage.KeySidebarOpen); err != nil {
					return err
				} else if ok {
					open, _ = strconv.ParseBool(v)
				}
				if cc.JSONMode {
					return writeJSON(cmd, map[string]bool{"sidebarOpen": open})
				}
				state := "off"
				if open {
					state = "on"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sidebar: %s\n", state)
				return nil
			})
		},
	})
	return cmd
}
