// Package cli is the callcenter command-line front-end.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"callcenter/internal/api"
	"callcenter/internal/auth"
	"callcenter/internal/config"
	apperrors "callcenter/internal/errors"
	"callcenter/internal/storage"
	"callcenter/internal/tickets"
)

const AppName = "callcenter"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Call center grievance and feedback client",
		Long:          "callcenter records grievances and feedback calls, browses tickets and answers them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().String("state", "", "state database path (default from STATE_PATH)")
	cmd.PersistentFlags().String("base-url", "", "backend base URL (default from CALLCENTER_BASE_URL)")
	cmd.PersistentFlags().Bool("debug", false, "trace backend requests")

	cmd.AddCommand(
		NewLoginCmd(),
		NewLogoutCmd(),
		NewWhoamiCmd(),
		NewDashboardCmd(),
		NewListCmd("grievances", "List incoming grievances", "incoming"),
		NewListCmd("feedback", "List outgoing feedback", "outgoing"),
		NewChatCmd(),
		NewReplyCmd(),
		NewMasterCmd(),
		NewQuestionsCmd(),
		NewCandidatesCmd(),
		NewSubmitCmd(),
		NewExportCmd(),
		NewSummaryCmd(),
		NewPrefsCmd(),
		NewWatchCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd(Version).Execute()
}

// CommandContext provides shared command resources.
type CommandContext struct {
	Config   *config.Config
	Store    *storage.SQLiteStore
	Client   *api.Client
	Auth     *auth.Manager
	JSONMode bool
}

// Close releases the state database.
func (c *CommandContext) Close() error {
	return c.Store.Close()
}

// Lister returns a ticket lister for the configured login id.
func (c *CommandContext) Lister(pageSize int) *tickets.Lister {
	if pageSize < 1 {
		pageSize = c.Config.PageSize
	}
	return tickets.NewLister(c.Client, c.Config.LoginID, pageSize)
}

// GetContext loads configuration, opens the state database and builds the
// API client for a command. Flags override configuration.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	jsonMode, _ := cmd.Flags().GetBool("json")
	statePath, _ := cmd.Flags().GetString("state")
	baseURL, _ := cmd.Flags().GetString("base-url")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if statePath != "" {
		cfg.StatePath = statePath
	}
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if debug {
		cfg.DebugMode = true
	}

	store, err := storage.Open(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	client := api.New(cfg.BaseURL, store,
		api.WithHTTPClient(api.NewHTTPClient(cfg.HTTPTimeout)),
		api.WithDebug(cfg.DebugMode),
	)

	return &CommandContext{
		Config:   cfg,
		Store:    store,
		Client:   client,
		Auth:     auth.NewManager(client, store),
		JSONMode: jsonMode,
	}, nil
}

// withContext runs fn with a CommandContext and closes it afterwards.
func withContext(cmd *cobra.Command, fn func(ctx context.Context, cc *CommandContext) error) error {
	cc, err := GetContext(cmd)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	defer cc.Close()

	if err := fn(cmd.Context(), cc); err != nil {
		return writeCommandError(cmd, err)
	}
	return nil
}

// requireSession restores the stored session or fails with a hint to log in.
func requireSession(cc *CommandContext) (*auth.User, error) {
	user, err := cc.Auth.Restore()
	if err != nil {
		return nil, fmt.Errorf("%w (run `%s login`)", err, AppName)
	}
	return user, nil
}

func writeCommandError(cmd *cobra.Command, err error) error {
	var verrs apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		for _, field := range verrs.Fields() {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", errorStyle.Render("✗"), field, verrs[field])
		}
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	if apperrors.NeedsLogin(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: your session is not valid. Try: %s login\n", AppName)
	}
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
