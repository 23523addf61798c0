package reminder

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/otterable/minifitna/internal/events"
)

// ID names one of the fixed set of daily reminders.
type ID int

const (
	WeighIn ID = 1
	Run     ID = 2
)

func (id ID) String() string {
	switch id {
	case WeighIn:
		return "weigh-in"
	case Run:
		return "run"
	default:
		return fmt.Sprintf("reminder(%d)", int(id))
	}
}

// Fixed notification texts per reminder id.
var texts = map[ID]struct{ Title, Body string }{
	WeighIn: {"Weigh-in", "Time to step on the scale"},
	Run:     {"Run", "Time for your daily run"},
}

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" with a 24-hour clock. Trailing input
// such as seconds or an am/pm suffix is rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// NextFireInstant computes the next absolute instant at which a daily
// reminder for tod should fire, resolved in now's location at call time.
// If today's occurrence is not strictly after now it rolls to tomorrow;
// an occurrence at exactly now is treated as already passed.
func NextFireInstant(tod TimeOfDay, now time.Time) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Notifier is the platform notification primitive: best-effort delivery,
// no confirmation. Implementations re-resolve local wall-clock repetition
// themselves, so the scheduler only computes one correct initial instant.
type Notifier interface {
	ScheduleOnce(id ID, at time.Time, title, body string) error
	Cancel(id ID) error
}

// Scheduler owns cancel/reschedule semantics for the fixed reminder set.
// Each id moves Unscheduled → Scheduled → Unscheduled; a reschedule is a
// sequenced cancel-then-schedule with no window where both firings are live.
//
// A nil notifier puts the whole component in degraded mode: every operation
// becomes a silent no-op. Callers never need to check availability first.
type Scheduler struct {
	notifier Notifier
	bus      *events.Bus
	now      func() time.Time

	mu        sync.Mutex
	scheduled map[ID]time.Time // id → next fire instant
}

// NewScheduler creates a scheduler on the given notification primitive.
// bus may be nil; now defaults to time.Now.
func NewScheduler(notifier Notifier, bus *events.Bus, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		notifier:  notifier,
		bus:       bus,
		now:       now,
		scheduled: make(map[ID]time.Time),
	}
}

// Schedule arms the reminder id at the next occurrence of tod, cancelling
// any prior scheduling for the same id first.
func (s *Scheduler) Schedule(id ID, tod TimeOfDay) {
	if s.notifier == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)

	at := NextFireInstant(tod, s.now())
	txt := texts[id]
	if err := s.notifier.ScheduleOnce(id, at, txt.Title, txt.Body); err != nil {
		// Best-effort by design: reminders degrade silently.
		log.Printf("[Reminder] Schedule %s failed: %v", id, err)
		return
	}
	s.scheduled[id] = at

	s.publish(events.ReminderScheduled, id, map[string]string{
		"fire_at": at.Format(time.RFC3339),
		"time":    tod.String(),
	})
}

// Cancel disarms the reminder id. Cancelling an unscheduled id, or calling
// with no notification support at all, is a no-op rather than an error.
func (s *Scheduler) Cancel(id ID) {
	if s.notifier == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLocked(id) {
		s.publish(events.ReminderCancelled, id, nil)
	}
}

// RescheduleBoth re-arms the weigh-in and run reminders with the given
// times. Called whenever the stored times change and on every successful
// login or session restore, so live reminders always match the latest
// known preference.
func (s *Scheduler) RescheduleBoth(weigh, run TimeOfDay) {
	s.Schedule(WeighIn, weigh)
	s.Schedule(Run, run)
}

// NextFire reports the armed fire instant for id, if any.
func (s *Scheduler) NextFire(id ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.scheduled[id]
	return at, ok
}

func (s *Scheduler) cancelLocked(id ID) bool {
	if _, ok := s.scheduled[id]; !ok {
		return false
	}
	if err := s.notifier.Cancel(id); err != nil {
		log.Printf("[Reminder] Cancel %s failed: %v", id, err)
	}
	delete(s.scheduled, id)
	return true
}

func (s *Scheduler) publish(t events.EventType, id ID, meta map[string]string) {
	if s.bus == nil {
		return
	}
	if meta == nil {
		meta = map[string]string{}
	}
	meta["reminder"] = id.String()
	s.bus.Publish(events.Event{
		Type:     t,
		Severity: events.SeverityInfo,
		Message:  fmt.Sprintf("Reminder %s %s", id, t),
		Metadata: meta,
	})
}
