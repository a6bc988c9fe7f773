// Package watch runs the unattended monitor loop: poll open grievances,
// announce new ones on Telegram and keep the seen set in step with the
// backend.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"callcenter/internal/api"
	"callcenter/internal/auth"
	apperrors "callcenter/internal/errors"
	"callcenter/internal/grievance"
	"callcenter/internal/health"
	"callcenter/internal/search"
	"callcenter/internal/storage"
	"callcenter/internal/summary"
	"callcenter/internal/telegram"
	"callcenter/internal/tickets"
)

// Options tune the watch loop.
type Options struct {
	Username        string
	Password        string
	Interval        time.Duration
	MaxPages        int
	MaxLoginRetries int
	LoginRetryDelay time.Duration
	Workers         int
}

// Watcher polls the backend for open incoming grievances.
type Watcher struct {
	client   *api.Client
	lister   *tickets.Lister
	auth     *auth.Manager
	seen     *storage.SQLiteStore
	notifier *telegram.Client
	monitor  *health.Monitor
	opts     Options

	// listing drops a poll's ticket list once a newer poll has started;
	// apply serializes the notify-and-persist step.
	listing tickets.Guard[[]api.Ticket]
	apply   sync.Mutex
}

// Result summarises one poll.
type Result struct {
	New     []api.Ticket
	Dropped []string
	Pending int
}

// New returns a Watcher. notifier and monitor may be nil.
func New(client *api.Client, lister *tickets.Lister, mgr *auth.Manager, seen *storage.SQLiteStore,
	notifier *telegram.Client, monitor *health.Monitor, opts Options) *Watcher {
	if monitor == nil {
		monitor = health.NewMonitor()
	}
	return &Watcher{
		client:   client,
		lister:   lister,
		auth:     mgr,
		seen:     seen,
		notifier: notifier,
		monitor:  monitor,
		opts:     opts,
	}
}

// openGrievances is the list query the watcher polls.
var openGrievances = search.Filters{
	Status:    tickets.StatusOpen,
	EntryType: grievance.EntryIncoming,
}

// poll runs one fetch-notify-persist cycle without any session recovery.
func (w *Watcher) poll(ctx context.Context) (*Result, error) {
	open, err := w.listing.Run(ctx, func(ctx context.Context) ([]api.Ticket, error) {
		return w.lister.FetchAll(ctx, openGrievances, w.opts.MaxPages)
	})
	if err != nil {
		return nil, err
	}

	w.apply.Lock()
	defer w.apply.Unlock()

	res := &Result{}
	current := make(map[string]bool, len(open))
	var fresh []storage.Seen

	for _, t := range open {
		current[t.TicketID] = true
		if !w.seen.IsNew(t.TicketID) {
			continue
		}

		log.Printf("  🆕 New grievance %s from %s\n", t.TicketID, t.UserName)
		messageID, err := w.notifier.SendTicketMessage(ctx, t)
		if err != nil {
			// left unseen so the next poll retries the notification
			log.Printf("  ⚠️  Failed to notify %s: %v\n", t.TicketID, err)
			continue
		}
		fresh = append(fresh, storage.Seen{
			ID:        int64(t.ID),
			TicketID:  t.TicketID,
			UserName:  t.UserName,
			MessageID: messageID,
		})
		res.New = append(res.New, t)
	}

	if err := w.seen.MarkSeen(fresh); err != nil {
		return nil, fmt.Errorf("persist seen tickets: %w", err)
	}

	// A listing cut short by MaxPages cannot tell closed tickets apart from
	// ones on later pages.
	truncated := w.opts.MaxPages > 0 && len(open) >= w.opts.MaxPages*w.lister.PageSize()
	if truncated {
		log.Println("  ⚠️  Listing truncated by page limit, keeping all seen tickets")
	} else {
		for _, s := range w.seen.SeenTickets() {
			if current[s.TicketID] {
				continue
			}
			if removed, err := w.seen.RemoveSeen(s.TicketID); err != nil {
				log.Printf("  ⚠️  Failed to drop %s: %v\n", s.TicketID, err)
			} else if removed {
				log.Printf("  ✓ %s is no longer open\n", s.TicketID)
				res.Dropped = append(res.Dropped, s.TicketID)
			}
		}
	}

	res.Pending = len(w.seen.SeenTickets())
	return res, nil
}

// RunOnce polls once, recovering from an expired session.
//
// Error flow:
//
//	poll fails
//	  ├─ other error → log & return
//	  └─ session rejected
//	      ├─ re-login succeeds → poll again
//	      └─ re-login fails → Telegram critical alert
func (w *Watcher) RunOnce(ctx context.Context) (*Result, error) {
	res, err := w.runOnce(ctx)
	if errors.Is(err, tickets.ErrStale) {
		log.Println("⏭️  Poll superseded by a newer one")
		return nil, err
	}
	if err != nil {
		w.monitor.RecordPoll(0, err)
		return nil, err
	}
	w.monitor.RecordPoll(res.Pending, nil)
	if len(res.New) == 0 {
		log.Println("✓ No new grievances")
	} else {
		log.Printf("✓ %d new grievance(s)\n", len(res.New))
	}
	return res, nil
}

func (w *Watcher) runOnce(ctx context.Context) (*Result, error) {
	res, err := w.poll(ctx)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, tickets.ErrStale) {
		return nil, err
	}
	if !apperrors.NeedsLogin(err) {
		log.Println("⚠️  Error fetching grievances:", err)
		return nil, err
	}

	log.Println("🔄 Session rejected:", err)
	if _, loginErr := w.auth.LoginWithRetry(ctx, w.opts.Username, w.opts.Password,
		w.opts.MaxLoginRetries, w.opts.LoginRetryDelay); loginErr != nil {
		log.Println("❌ Re-login failed:", loginErr)
		log.Println("🚨 Sending critical failure alert...")
		if alertErr := w.notifier.SendCriticalAlert(ctx, "Login Failure",
			fmt.Sprintf("Unable to log in to the call center backend. Last error: %v", loginErr),
			w.opts.MaxLoginRetries); alertErr != nil {
			log.Println("⚠️  Failed to send Telegram alert:", alertErr)
		}
		return nil, fmt.Errorf("re-login failed: %w", loginErr)
	}

	log.Println("✓ Re-login successful, retrying fetch...")
	res, err = w.poll(ctx)
	if err != nil {
		log.Println("⚠️  Fetch still failed after re-login:", err)
		return nil, err
	}
	return res, nil
}

// Run logs in if needed, polls immediately and then every Interval until
// ctx is cancelled. Poll errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.auth.Restore(); err != nil {
		log.Println("🔐 No usable session, logging in...")
		if _, err := w.auth.LoginWithRetry(ctx, w.opts.Username, w.opts.Password,
			w.opts.MaxLoginRetries, w.opts.LoginRetryDelay); err != nil {
			return fmt.Errorf("initial login: %w", err)
		}
	}

	log.Println("📬 Fetching grievances...")
	w.RunOnce(ctx)

	interval := w.opts.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	log.Printf("⏰ Starting refresh loop - will check every %s...\n", interval)
	log.Println("═══════════════════════════════════════════════════════════")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Watch loop stopped")
			return nil
		case <-ticker.C:
			log.Println("📬 Refreshing grievance list...")
			log.Println("⏰ Time:", time.Now().Format("2006-01-02 15:04:05"))
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, tickets.ErrStale) {
				log.Println("⚠️  Final error after all retry attempts:", err)
			}
			log.Println("═══════════════════════════════════════════════════════════")
		}
	}
}

// Refresh polls immediately. It backs the health server's POST /refresh
// and may overlap the ticker; the older of two overlapping polls is dropped.
func (w *Watcher) Refresh(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	if errors.Is(err, tickets.ErrStale) {
		return nil
	}
	return err
}

// SendSummary renders every pending seen ticket as a table image and posts
// it to Telegram.
func (w *Watcher) SendSummary(ctx context.Context) error {
	pending, err := summary.FetchPendingDetails(ctx, w.client, w.seen.SeenTickets(), w.opts.Workers)
	if err != nil {
		return err
	}
	png, err := summary.RenderTable(pending, "Pending Grievances")
	if err != nil {
		return err
	}
	return w.notifier.SendPhoto(ctx, png, fmt.Sprintf("📊 %d pending grievances", len(pending)))
}

// CloseTicket closes ticket id with remarks as its final outgoing reply. It
// is the action behind the Telegram "Close Ticket" button.
func (w *Watcher) CloseTicket(ctx context.Context, id int64, remarks string) error {
	_, err := tickets.Reply(ctx, w.client, tickets.ReplyInput{
		TicketID: id,
		Message:  remarks,
		Close:    true,
	})
	return err
}

// HandleTelegram serves Telegram button clicks until ctx is cancelled.
func (w *Watcher) HandleTelegram(ctx context.Context) {
	w.notifier.HandleUpdates(ctx, w.seen, w.CloseTicket)
}
