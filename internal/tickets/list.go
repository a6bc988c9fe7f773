// Package tickets lists grievances and feedback, reads and answers ticket
// chats, and guards list views against out-of-order responses.
package tickets

import (
	"context"
	"log"

	"callcenter/internal/api"
	"callcenter/internal/search"
)

// Page is one page of a ticket list.
type Page struct {
	Tickets    []api.Ticket `json:"tickets"`
	Count      int          `json:"count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// Lister runs list queries for one login id.
type Lister struct {
	client   *api.Client
	loginID  int64
	pageSize int
}

// NewLister returns a Lister. A pageSize below 1 means 10.
func NewLister(client *api.Client, loginID int64, pageSize int) *Lister {
	if pageSize < 1 {
		pageSize = 10
	}
	return &Lister{client: client, loginID: loginID, pageSize: pageSize}
}

// PageSize returns the number of tickets requested per page.
func (l *Lister) PageSize() int { return l.pageSize }

// List fetches one page. Pages are numbered from 1.
func (l *Lister) List(ctx context.Context, page int, filters search.Filters) (*Page, error) {
	if page < 1 {
		page = 1
	}
	resp, err := l.client.GetGrievances(ctx, api.ListQuery{
		LoginID:     l.loginID,
		CurrentPage: page,
		PageSize:    l.pageSize,
		Filters:     filters,
	})
	if err != nil {
		return nil, err
	}

	count := int(resp.Count)
	return &Page{
		Tickets:    resp.Data,
		Count:      count,
		Page:       page,
		PageSize:   l.pageSize,
		TotalPages: totalPages(count, l.pageSize),
	}, nil
}

func totalPages(count, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// FetchAll walks pages from 1 and returns every ticket found.
//
// Stops when:
//   - a page comes back short or empty
//   - the reported count has been reached
//   - maxPages pages have been read (0 means no limit)
func (l *Lister) FetchAll(ctx context.Context, filters search.Filters, maxPages int) ([]api.Ticket, error) {
	var all []api.Ticket

	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			log.Printf("🛑 Reached maximum page limit (%d). Stopping.\n", maxPages)
			break
		}

		p, err := l.List(ctx, page, filters)
		if err != nil {
			return all, err
		}
		all = append(all, p.Tickets...)
		log.Printf("  ✓ Page %d: %d tickets (%d/%d)\n", page, len(p.Tickets), len(all), p.Count)

		if len(p.Tickets) < l.pageSize || len(all) >= p.Count {
			break
		}
	}
	return all, nil
}
