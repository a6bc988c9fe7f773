package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"callcenter/internal/api"
	"callcenter/internal/dates"
)

const (
	noDistrict = "No district"
	agingDays  = 3
	staleDays  = 7
)

// ageBand classifies how long a ticket has been waiting.
type ageBand int

const (
	fresh ageBand = iota
	aging
	stale
)

// group is the pending tickets of one district, oldest first.
type group struct {
	District string
	Tickets  []api.Ticket
}

// groupByDistrict buckets tickets by district. The largest backlog comes
// first, ties go by name and tickets without a district close the list.
func groupByDistrict(tickets []api.Ticket) []group {
	index := make(map[string]int)
	var groups []group
	for _, t := range sortByEntryTime(tickets) {
		name := strings.TrimSpace(t.District)
		if name == "" {
			name = noDistrict
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, group{District: name})
		}
		groups[i].Tickets = append(groups[i].Tickets, t)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if (a.District == noDistrict) != (b.District == noDistrict) {
			return b.District == noDistrict
		}
		if len(a.Tickets) != len(b.Tickets) {
			return len(a.Tickets) > len(b.Tickets)
		}
		return a.District < b.District
	})
	return groups
}

// sortByEntryTime returns a copy of tickets ordered by entry time. Tickets
// with unparseable times go last, in their original order.
func sortByEntryTime(tickets []api.Ticket) []api.Ticket {
	out := make([]api.Ticket, len(tickets))
	copy(out, tickets)

	at := func(t *api.Ticket) (time.Time, bool) {
		ts, err := dates.ParseWire(t.EntryDateTime)
		return ts, err == nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := at(&out[i])
		tj, okJ := at(&out[j])
		if okI && okJ {
			return ti.Before(tj)
		}
		return okI && !okJ
	})
	return out
}

// statusLabel is what the Status column shows. An unanswered call outranks
// the backend status.
func statusLabel(t *api.Ticket) string {
	if t.IsUnanswered {
		return "Unanswered"
	}
	if s := strings.TrimSpace(t.Status); s != "" {
		return s
	}
	return "Open"
}

// ageDays is the number of whole days since the ticket was entered.
func ageDays(t *api.Ticket, now time.Time) (int, bool) {
	ts, err := dates.ParseWire(t.EntryDateTime)
	if err != nil {
		return 0, false
	}
	days := int(now.Sub(ts).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

func ageLabel(days int, ok bool) string {
	switch {
	case !ok:
		return "-"
	case days == 0:
		return "today"
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}

func bandOf(days int, ok bool) ageBand {
	switch {
	case !ok || days < agingDays:
		return fresh
	case days < staleDays:
		return aging
	default:
		return stale
	}
}

// statusTally counts tickets per status label, most frequent first:
// "Open 4, Unanswered 2".
func statusTally(tickets []api.Ticket) string {
	counts := make(map[string]int)
	var labels []string
	for i := range tickets {
		l := statusLabel(&tickets[i])
		if counts[l] == 0 {
			labels = append(labels, l)
		}
		counts[l]++
	}
	sort.SliceStable(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s %d", l, counts[l])
	}
	return strings.Join(parts, ", ")
}

// oldestDays is the age of the longest waiting ticket, if any has a
// parseable entry time.
func oldestDays(tickets []api.Ticket, now time.Time) (int, bool) {
	oldest, found := 0, false
	for i := range tickets {
		if d, ok := ageDays(&tickets[i], now); ok && (!found || d > oldest) {
			oldest, found = d, true
		}
	}
	return oldest, found
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) > maxLen {
		return string([]rune(s)[:maxLen]) + "…"
	}
	return s
}
