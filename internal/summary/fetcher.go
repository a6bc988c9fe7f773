package summary

import (
	"context"
	"fmt"
	"log"

	"callcenter/internal/api"
	"callcenter/internal/storage"
	"callcenter/internal/tickets"
)

// FetchPendingDetails loads the current state of every seen ticket.
//
// Chats are fetched concurrently through the ticket worker pool. Tickets that
// fail to load, or that have been closed since they were seen, are skipped.
//
// Parameters:
//   - ctx: Context for cancellation
//   - client: Authenticated API client
//   - seen: Tickets recorded by the watcher
//   - workers: Number of concurrent fetches
//
// Returns:
//   - []api.Ticket: Tickets still pending, in seen order
//   - error: If there is nothing to fetch or every fetch fails
func FetchPendingDetails(ctx context.Context, client *api.Client, seen []storage.Seen, workers int) ([]api.Ticket, error) {
	if len(seen) == 0 {
		return nil, fmt.Errorf("no pending tickets found")
	}

	log.Printf("📊 Fetching details for %d pending tickets...", len(seen))

	ids := make([]int64, len(seen))
	for i, s := range seen {
		ids[i] = s.ID
	}
	results := tickets.LoadThreads(ctx, client, ids, workers)

	var pending []api.Ticket
	loaded := 0
	for _, s := range seen {
		r := results[s.ID]
		if r.Error != nil {
			log.Printf("  ⚠️  Failed to fetch details for %s: %v", s.TicketID, r.Error)
			continue
		}
		if r.Thread == nil || r.Thread.Ticket == nil {
			log.Printf("  ⚠️  No details returned for %s, skipping", s.TicketID)
			continue
		}
		loaded++
		if r.Thread.Ticket.Status == tickets.StatusClosed {
			continue
		}
		pending = append(pending, *r.Thread.Ticket)
	}

	if loaded == 0 {
		return nil, fmt.Errorf("failed to fetch any ticket details")
	}

	log.Printf("📊 Successfully fetched %d/%d ticket details", loaded, len(seen))
	return pending, nil
}
