package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"callcenter/internal/api"
	"callcenter/internal/dates"
	"callcenter/internal/tickets"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	incomingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	outgoingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
)

var statusStyles = map[string]lipgloss.Style{
	tickets.StatusOpen:       lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	tickets.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	tickets.StatusClosed:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
}

func statusText(status string) string {
	if style, ok := statusStyles[status]; ok {
		return style.Render(status)
	}
	return status
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderTickets(w io.Writer, p *tickets.Page) {
	if len(p.Tickets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tickets found"))
		return
	}

	t := newTable("ID", "Ticket", "Name", "Mobile", "Role", "Query Type", "District", "Status", "Date")
	for _, tk := range p.Tickets {
		status := tk.Status
		if tk.IsUnanswered {
			status += " (unanswered)"
		}
		t.Row(
			strconv.FormatInt(int64(tk.ID), 10),
			tk.TicketID,
			tk.UserName,
			string(tk.Mobile),
			tk.RoleName,
			tk.QueryType,
			tk.District,
			statusText(status),
			dates.ParseDisplayDate(tk.EntryDateTime),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Page %d of %d · %d total", p.Page, p.TotalPages, p.Count)))
}

func renderStats(w io.Writer, s api.Stats) {
	t := newTable("Metric", "Count")
	t.Row("Total tickets", strconv.Itoa(int(s.TotalTicket)))
	t.Row("Open tickets", strconv.Itoa(int(s.OpenTicket)))
	t.Row("Closed tickets", strconv.Itoa(int(s.ClosedTicket)))
	t.Row("Total feedbacks", strconv.Itoa(int(s.TotalFeedbacks)))
	t.Row("Answered calls", strconv.Itoa(int(s.TotalAnsweredCalls)))
	t.Row("Unanswered calls", strconv.Itoa(int(s.TotalUnansweredCalls)))
	fmt.Fprintln(w, titleStyle.Render("Dashboard"))
	fmt.Fprintln(w, t.Render())
}

func renderThread(w io.Writer, th *tickets.Thread) {
	if th.Ticket == nil {
		fmt.Fprintln(w, mutedStyle.Render("Ticket not found"))
		return
	}
	tk := th.Ticket

	fmt.Fprintf(w, "%s  %s\n", titleStyle.Render(tk.TicketID), statusText(tk.Status))
	fmt.Fprintf(w, "%s · %s · %s\n", tk.UserName, string(tk.Mobile), tk.District)
	fmt.Fprintf(w, "%s / %s\n", tk.RoleName, tk.QueryType)
	fmt.Fprintln(w, mutedStyle.Render(dates.ParseDisplayDate(tk.EntryDateTime)))
	if tk.QueryDescription != "" {
		fmt.Fprintf(w, "\n%s\n", tk.QueryDescription)
	}

	if len(th.Questions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Feedback"))
		for i, q := range th.Questions {
			fmt.Fprintf(w, "%d. %s\n   → %s", i+1, q.Question, q.Response)
			if q.Comment != "" {
				fmt.Fprintf(w, " %s", mutedStyle.Render("("+q.Comment+")"))
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Timeline"))
	if len(th.History) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No replies yet"))
	}
	for _, e := range th.History {
		marker := outgoingStyle.Render("◀ " + e.EntryType)
		if e.EntryType == tickets.ReplyIncoming {
			marker = incomingStyle.Render("▶ " + e.EntryType)
		}
		fmt.Fprintf(w, "%s %s\n  %s\n", marker, mutedStyle.Render(dates.ParseDisplayDate(e.EntryDateTime)), e.Reply)
	}

	if !tickets.CanReply(tk) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, mutedStyle.Render("This ticket no longer accepts replies."))
	}
}
