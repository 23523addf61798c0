package reminder

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/robfig/cron/v3"

	"github.com/otterable/minifitna/internal/events"
)

// Sender delivers one rendered reminder message.
type Sender interface {
	Send(message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library to a configured
// service URL (gotify, telegram, pushover, ...).
type ShoutrrrSender struct {
	URL string
}

func (s ShoutrrrSender) Send(message string) error {
	return shoutrrr.Send(s.URL, message)
}

// CronNotifier is the local notification primitive. ScheduleOnce arms a
// daily cron entry at the wall-clock time of the given instant; cron
// re-resolves the local time zone on every activation, which is exactly
// the repetition contract the scheduler assumes of the platform.
type CronNotifier struct {
	cron   *cron.Cron
	sender Sender
	bus    *events.Bus

	mu      sync.Mutex
	entries map[ID]cron.EntryID
}

// NewCronNotifier creates and starts the notifier. bus may be nil.
func NewCronNotifier(sender Sender, bus *events.Bus) *CronNotifier {
	c := cron.New()
	c.Start()
	return &CronNotifier{
		cron:    c,
		sender:  sender,
		bus:     bus,
		entries: make(map[ID]cron.EntryID),
	}
}

// ScheduleOnce arms id to fire at the wall-clock time of at, daily.
// A prior entry for the same id is replaced.
func (n *CronNotifier) ScheduleOnce(id ID, at time.Time, title, body string) error {
	spec := fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour())

	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.entries[id]; ok {
		n.cron.Remove(old)
	}

	entry, err := n.cron.AddFunc(spec, func() {
		n.deliver(id, title, body)
	})
	if err != nil {
		return fmt.Errorf("arm reminder %s: %w", id, err)
	}
	n.entries[id] = entry
	return nil
}

// Cancel disarms id; unknown ids are ignored.
func (n *CronNotifier) Cancel(id ID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if entry, ok := n.entries[id]; ok {
		n.cron.Remove(entry)
		delete(n.entries, id)
	}
	return nil
}

// Stop halts the cron runner. Armed entries do not fire afterwards.
func (n *CronNotifier) Stop() {
	n.cron.Stop()
}

func (n *CronNotifier) deliver(id ID, title, body string) {
	msg := fmt.Sprintf("%s: %s", title, body)
	if err := n.sender.Send(msg); err != nil {
		log.Printf("[Reminder] Deliver %s failed: %v", id, err)
		return
	}

	if n.bus != nil {
		n.bus.Publish(events.Event{
			Type:     events.ReminderFired,
			Severity: events.SeverityInfo,
			Message:  msg,
			Metadata: map[string]string{"reminder": id.String()},
		})
	}
}
