package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/katalog/internal/docstore"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/overdue"
	"github.com/dukerupert/katalog/internal/store"
)

// sentRetention is how long dedup records are kept.
const sentRetention = 90 * 24 * time.Hour

// EntryLister reads the current manual entries.
type EntryLister interface {
	List(ctx context.Context) ([]docstore.Document, error)
}

// Scheduler periodically alerts admins about manual entries that became
// overdue. Each entry is announced once per due date.
type Scheduler struct {
	mu       sync.RWMutex
	sender   Sender
	push     *store.PushStore
	entries  EntryLister
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(sender Sender, pushStore *store.PushStore, entries EntryLister, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:   sender,
		push:     pushStore,
		entries:  entries,
		logger:   logger,
		now:      time.Now,
		interval: 60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()
	s.checkOverdueEntries(ctx, now)

	if _, err := s.push.CleanupSent(now.Add(-sentRetention)); err != nil {
		s.logger.Error("cleanup sent notifications", "error", err)
	}
}

func (s *Scheduler) checkOverdueEntries(ctx context.Context, now time.Time) {
	docs, err := s.entries.List(ctx)
	if err != nil {
		s.logger.Error("list manual entries", "error", err)
		return
	}

	entries := make([]model.ManualEntry, 0, len(docs))
	for _, d := range docs {
		var e model.ManualEntry
		if err := d.Decode(&e); err != nil {
			s.logger.Warn("skipping manual entry", "id", d.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	for _, e := range overdue.Overdue(entries, now) {
		refID := e.ID + "@" + e.AbgabeBis
		sent, err := s.push.WasSent(model.NotifTypeEntryOverdue, refID)
		if err != nil {
			s.logger.Error("check sent", "error", err)
			continue
		}
		if sent {
			continue
		}

		subs, err := s.push.ListAdminSubscriptions()
		if err != nil {
			s.logger.Error("list admin subscriptions", "error", err)
			return
		}
		if len(subs) == 0 {
			// Not recorded, so an admin who subscribes later still gets it.
			continue
		}

		payload := Payload{
			Title: "Anfrage überfällig",
			Body:  fmt.Sprintf("%s war fällig am %s", entryTitle(e), e.AbgabeBis),
			URL:   "/tabs/manualEntries",
			Tag:   "entry-" + e.ID,
		}
		for _, sub := range subs {
			if err := s.sender.Send(&sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
						s.logger.Error("delete expired subscription", "error", err)
					}
				} else {
					s.logger.Error("send overdue alert", "entry_id", e.ID, "error", err)
				}
			}
		}

		if err := s.push.RecordSent(model.NotifTypeEntryOverdue, refID); err != nil {
			s.logger.Error("record sent", "error", err)
		}
	}
}

func entryTitle(e model.ManualEntry) string {
	if e.Title != "" {
		return e.Title
	}
	if e.Customer != "" {
		return e.Customer
	}
	return "Anfrage " + e.ID
}
