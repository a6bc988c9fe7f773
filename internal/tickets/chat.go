package tickets

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"callcenter/internal/api"
	"callcenter/internal/dates"
	apperrors "callcenter/internal/errors"
)

// ErrEmptyReply is returned for a reply with no text.
var ErrEmptyReply = errors.New("Please enter a response message.")

// Status values the backend uses.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusClosed     = "Closed"
)

// Reply entry types.
const (
	ReplyOutgoing = "Outgoing"
	ReplyIncoming = "Incoming"
)

// EntryFeedback is the ticket entry type of outgoing feedback calls,
// compared case-insensitively.
const EntryFeedback = "outgoing"

// Thread is a ticket with its answered questions and chat history.
type Thread struct {
	Ticket    *api.Ticket            `json:"ticket"`
	Questions []api.AnsweredQuestion `json:"questions,omitempty"`
	History   []api.ChatEntry        `json:"history"`
}

// Timeline fetches ticket id's chat. History is ordered oldest first by
// entry time; entries whose time cannot be parsed keep server order.
func Timeline(ctx context.Context, client *api.Client, id int64) (*Thread, error) {
	resp, err := client.GetChatData(ctx, id)
	if err != nil {
		return nil, err
	}

	t := &Thread{}
	if resp.Data == nil {
		return t, nil
	}
	if len(resp.Data.Initial) > 0 {
		t.Ticket = &resp.Data.Initial[0]
	}
	t.Questions = resp.Data.Questions
	t.History = SortHistory(resp.Data.ChatHistory)
	return t, nil
}

// SortHistory returns a copy of entries ordered by entry time. Entries
// whose time cannot be parsed keep their positions; the rest are sorted
// stably among the remaining slots.
func SortHistory(entries []api.ChatEntry) []api.ChatEntry {
	out := make([]api.ChatEntry, len(entries))
	copy(out, entries)

	type timed struct {
		entry api.ChatEntry
		at    time.Time
	}
	var slots []int
	var parsed []timed
	for i, e := range out {
		if ts, err := dates.ParseWire(e.EntryDateTime); err == nil {
			slots = append(slots, i)
			parsed = append(parsed, timed{entry: e, at: ts})
		}
	}

	sort.SliceStable(parsed, func(a, b int) bool { return parsed[a].at.Before(parsed[b].at) })
	for i, slot := range slots {
		out[slot] = parsed[i].entry
	}
	return out
}

// CanReply reports whether the ticket still accepts replies: it is not
// closed and it is not outgoing feedback.
func CanReply(t *api.Ticket) bool {
	return t != nil && t.Status != StatusClosed && !IsFeedback(t)
}

// IsFeedback reports whether the ticket is outgoing feedback rather than a
// grievance.
func IsFeedback(t *api.Ticket) bool {
	return t != nil && strings.EqualFold(t.EntryType, EntryFeedback)
}

// ReplyInput is an operator reply.
type ReplyInput struct {
	TicketID int64
	Message  string
	// DateTime is optional; empty means now.
	DateTime string
	// EntryType is ReplyOutgoing (default) or ReplyIncoming.
	EntryType string
	Close     bool
}

// Reply appends a reply to the ticket's chat, optionally closing it.
func Reply(ctx context.Context, client *api.Client, in ReplyInput) (*api.Envelope, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyReply
	}

	at, err := dates.FormatForSubmission(in.DateTime)
	if err != nil {
		return nil, err
	}

	entryType := ReplyOutgoing
	if strings.EqualFold(in.EntryType, ReplyIncoming) {
		entryType = ReplyIncoming
	}
	status := 0
	if in.Close {
		status = 1
	}

	resp, err := client.SendChatReply(ctx, api.ReplyRequest{
		UserID:        in.TicketID,
		ReplyChat:     msg,
		EntryDateTime: at,
		EntryType:     entryType,
		Status:        status,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, apperrors.NewAPIError("reply", resp.Message, "Failed to add response. Please try again.")
	}
	return resp, nil
}
