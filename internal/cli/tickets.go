package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"callcenter/internal/export"
	"callcenter/internal/search"
	"callcenter/internal/summary"
	"callcenter/internal/telegram"
	"callcenter/internal/tickets"
)

// NewDashboardCmd creates the dashboard command.
func NewDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show ticket and call counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				resp, err := cc.Client.GetDashboardStats(ctx)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, resp.Data)
				}
				renderStats(cmd.OutOrStdout(), resp.Data)
				return nil
			})
		},
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "ticket id, mobile number or name")
	cmd.Flags().String("role", "", "filter by role")
	cmd.Flags().String("query-type", "", "filter by query type")
	cmd.Flags().String("status", "", "filter by status (Open, In Progress, Closed)")
	cmd.Flags().String("district", "", "filter by district")
	cmd.Flags().Bool("unanswered", false, "only unanswered calls")
	cmd.Flags().Bool("answered", false, "only answered calls")
	cmd.MarkFlagsMutuallyExclusive("unanswered", "answered")
}

func filtersFromFlags(cmd *cobra.Command, entryType string) search.Filters {
	f := search.Filters{EntryType: entryType}
	f.UserRole, _ = cmd.Flags().GetString("role")
	f.QueryType, _ = cmd.Flags().GetString("query-type")
	f.Status, _ = cmd.Flags().GetString("status")
	f.District, _ = cmd.Flags().GetString("district")
	if v, _ := cmd.Flags().GetBool("unanswered"); v {
		f.IsUnanswered = "1"
	}
	if v, _ := cmd.Flags().GetBool("answered"); v {
		f.IsUnanswered = "0"
	}
	if term, _ := cmd.Flags().GetString("search"); term != "" {
		f = search.Apply(f, term)
	}
	return f
}

// NewListCmd creates a ticket list command for one entry type.
func NewListCmd(use, short, entryType string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				page, _ := cmd.Flags().GetInt("page")
				size, _ := cmd.Flags().GetInt("size")
				all, _ := cmd.Flags().GetBool("all")
				filters := filtersFromFlags(cmd, entryType)
				lister := cc.Lister(size)

				if all {
					list, err := lister.FetchAll(ctx, filters, 0)
					if err != nil {
						return err
					}
					if cc.JSONMode {
						return writeJSON(cmd, list)
					}
					renderTickets(cmd.OutOrStdout(), &tickets.Page{
						Tickets: list, Count: len(list), Page: 1, PageSize: len(list), TotalPages: 1,
					})
					return nil
				}

				p, err := lister.List(ctx, page, filters)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, p)
				}
				renderTickets(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}

	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("size", 0, "page size (default from PAGE_SIZE)")
	cmd.Flags().Bool("all", false, "fetch every page")
	addFilterFlags(cmd)
	return cmd
}

func parseTicketID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q: expected the numeric id shown in the ID column", arg)
	}
	return id, nil
}

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id>",
		Short: "Show a ticket with its reply timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				id, err := parseTicketID(args[0])
				if err != nil {
					return err
				}
				th, err := tickets.Timeline(ctx, cc.Client, id)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, th)
				}
				renderThread(cmd.OutOrStdout(), th)
				return nil
			})
		},
	}
}

// NewReplyCmd creates the reply command.
func NewReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply <id> <message>",
		Short: "Add a reply to a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				id, err := parseTicketID(args[0])
				if err != nil {
					return err
				}
				incoming, _ := cmd.Flags().GetBool("incoming")
				closeTicket, _ := cmd.Flags().GetBool("close")
				at, _ := cmd.Flags().GetString("at")

				in := tickets.ReplyInput{
					TicketID: id,
					Message:  args[1],
					DateTime: at,
					Close:    closeTicket,
				}
				if incoming {
					in.EntryType = tickets.ReplyIncoming
				}

				resp, err := tickets.Reply(ctx, cc.Client, in)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, resp)
				}
				msg := resp.Message
				if msg == "" {
					msg = "Response added"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("✓"), msg)
				return nil
			})
		},
	}

	cmd.Flags().Bool("incoming", false, "record the reply as coming from the caller")
	cmd.Flags().Bool("close", false, "close the ticket with this reply")
	cmd.Flags().String("at", "", "reply time, e.g. 2025-08-04T17:00 (default now)")
	return cmd
}

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tickets to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				out, _ := cmd.Flags().GetString("out")
				entryType, _ := cmd.Flags().GetString("entry-type")

				list, err := cc.Lister(0).FetchAll(ctx, filtersFromFlags(cmd, entryType), 0)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return export.WriteCSV(cmd.OutOrStdout(), list)
				}
				if err := export.SaveCSV(out, list); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %d tickets to %s\n", okStyle.Render("✓"), len(list), out)
				return nil
			})
		},
	}

	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	cmd.Flags().String("entry-type", "incoming", "incoming or outgoing")
	addFilterFlags(cmd)
	return cmd
}

// NewSummaryCmd creates the summary command.
func NewSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Render open grievances as a PNG table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				out, _ := cmd.Flags().GetString("out")
				send, _ := cmd.Flags().GetBool("telegram")
				title, _ := cmd.Flags().GetString("title")

				open, err := cc.Lister(0).FetchAll(ctx, search.Filters{
					Status:    tickets.StatusOpen,
					EntryType: "incoming",
				}, cc.Config.MaxPages)
				if err != nil {
					return err
				}
				png, err := summary.RenderTable(open, title)
				if err != nil {
					return err
				}

				if out != "" {
					if err := os.WriteFile(out, png, 0644); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %d tickets to %s\n", okStyle.Render("✓"), len(open), out)
				}
				if send {
					tg := telegram.NewClient(cc.Config.TelegramBotToken, cc.Config.TelegramChatID, cc.Config.DebugMode)
					if tg == nil {
						return fmt.Errorf("telegram is not configured")
					}
					return tg.SendPhoto(ctx, png, fmt.Sprintf("📊 %d pending grievances", len(open)))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("out", "o", "summary.png", "output file")
	cmd.Flags().Bool("telegram", false, "also send the image to Telegram")
	cmd.Flags().String("title", "Pending Grievances", "table title")
	return cmd
}
