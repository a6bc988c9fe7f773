package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"callcenter/internal/health"
	"callcenter/internal/telegram"
	"callcenter/internal/watch"
)

// NewWatchCmd creates the watch command: the unattended service that polls
// open grievances and announces new ones on Telegram.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll open grievances and notify Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				cfg := cc.Config
				if err := cfg.ValidateCredentials(); err != nil {
					return err
				}
				once, _ := cmd.Flags().GetBool("once")
				sendSummary, _ := cmd.Flags().GetBool("summary")

				log.Println("🚀 Starting call center watch...")
				log.Println("📋 State database:", cfg.StatePath)

				log.Println("📨 Initializing Telegram...")
				notifier := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.DebugMode)
				if notifier == nil {
					log.Println("⚠️  Telegram not configured, notifications disabled")
				} else if cfg.DebugMode {
					log.Println("🐛 Debug mode: ticket closures are simulated")
				}

				monitor := health.NewMonitor()
				w := watch.New(cc.Client, cc.Lister(0), cc.Auth, cc.Store, notifier, monitor, watch.Options{
					Username:        cfg.Username,
					Password:        cfg.Password,
					Interval:        cfg.FetchInterval,
					MaxPages:        cfg.MaxPages,
					MaxLoginRetries: cfg.MaxLoginRetries,
					LoginRetryDelay: cfg.LoginRetryDelay,
					Workers:         cfg.WorkerPoolSize,
				})

				if _, err := cc.Auth.Restore(); err != nil {
					log.Println("🔐 No usable session, logging in...")
					if _, err := cc.Auth.LoginWithRetry(ctx, cfg.Username, cfg.Password,
						cfg.MaxLoginRetries, cfg.LoginRetryDelay); err != nil {
						return err
					}
				}

				if once {
					res, err := w.RunOnce(ctx)
					if err != nil {
						return err
					}
					if sendSummary && res.Pending > 0 {
						return w.SendSummary(ctx)
					}
					return nil
				}

				monitor.SetRefresh(w.Refresh)
				health.StartServer(ctx, monitor, cfg.HealthCheckPort)
				go w.HandleTelegram(ctx)
				if sendSummary {
					if err := w.SendSummary(ctx); err != nil {
						log.Println("⚠️  Summary not sent:", err)
					}
				}
				return w.Run(ctx)
			})
		},
	}

	cmd.Flags().Bool("once", false, "poll a single time and exit")
	cmd.Flags().Bool("summary", false, "post a pending-ticket summary image to Telegram")
	return cmd
}
