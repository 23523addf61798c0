package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/otterable/minifitna/internal/events"
	"github.com/otterable/minifitna/internal/models"
	"github.com/otterable/minifitna/internal/reminder"
	"github.com/otterable/minifitna/internal/store"
	"github.com/otterable/minifitna/internal/trend"
)

// ErrNoSession is returned by Restore when no cached session token exists.
var ErrNoSession = errors.New("no cached session")

// API is the backend surface the engine orchestrates. *api.Client satisfies
// it; tests substitute a stub.
type API interface {
	Login(ctx context.Context, username, password string) (string, error)
	ListWeights(ctx context.Context, start, end string) ([]models.WeightEntry, error)
	UpsertWeight(ctx context.Context, entry models.WeightEntry) error
	ListRuns(ctx context.Context, start, end string) ([]models.RunEntry, error)
	UpsertRun(ctx context.Context, entry models.RunEntry) error
	Me(ctx context.Context) (models.Profile, error)
	UpdateMe(ctx context.Context, p models.Profile) (models.Profile, error)
	SetToken(token string)
}

const dateLayout = "2006-01-02"

// Engine owns the derived state of the trend subsystem: the observation
// series, the fitted regression, and the goal feasibility verdict. It
// recomputes all of it from inputs it does not own and never mutates those
// inputs. Network suspension, error translation, and state publication live
// here; the trend package stays pure.
type Engine struct {
	api   API
	store *store.Store
	sched *reminder.Scheduler
	bus   *events.Bus
	now   func() time.Time

	mu          sync.Mutex
	loadSeq     uint64
	appliedSeq  uint64
	series      []trend.Point
	proj        trend.Projector
	profile     models.Profile
	profileSet  bool
	goalDate    time.Time
	goalDateSet bool
	verdict     trend.Verdict
}

// New creates an engine. bus may be nil; now defaults to time.Now.
func New(api API, st *store.Store, sched *reminder.Scheduler, bus *events.Bus, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{api: api, store: st, sched: sched, bus: bus, now: now}
}

// Login authenticates, caches the session token, and applies the freshly
// fetched profile (arming both reminders).
func (e *Engine) Login(ctx context.Context, username, password string) error {
	token, err := e.api.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	e.api.SetToken(token)
	if err := e.store.SetToken(token); err != nil {
		log.Printf("[Engine] Caching session token failed: %v", err)
	}
	return e.syncProfile(ctx)
}

// Restore brings the engine up from a cached session on cold start:
// reminders are re-armed from the locally cached times before the network
// is touched, the stored goal date is loaded, and a profile refresh is
// attempted best-effort. Returns ErrNoSession when no token is cached.
func (e *Engine) Restore(ctx context.Context) error {
	token, err := e.store.Token()
	if err != nil {
		return fmt.Errorf("read cached session: %w", err)
	}
	if token == "" {
		return ErrNoSession
	}
	e.api.SetToken(token)

	if weigh, run, ok, err := e.store.ReminderTimes(); err == nil && ok {
		wt, werr := reminder.ParseTimeOfDay(weigh)
		rt, rerr := reminder.ParseTimeOfDay(run)
		if werr == nil && rerr == nil {
			e.sched.RescheduleBoth(wt, rt)
		}
	}

	if d, ok, err := e.store.GoalDate(); err == nil && ok {
		e.mu.Lock()
		e.goalDate, e.goalDateSet = d, true
		e.mu.Unlock()
	}

	// A dead network here is not fatal; the heartbeat will report it and
	// the cached reminder state stays in effect.
	if err := e.syncProfile(ctx); err != nil {
		log.Printf("[Engine] Profile refresh on restore failed: %v", err)
	}
	return nil
}

// syncProfile fetches the profile and applies it.
func (e *Engine) syncProfile(ctx context.Context) error {
	p, err := e.api.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	return e.applyProfile(p)
}

// SaveSettings validates and stores new preferences. Malformed reminder
// times block the save entirely; nothing reaches the network.
func (e *Engine) SaveSettings(ctx context.Context, p models.Profile) error {
	if _, err := reminder.ParseTimeOfDay(p.WeighTime); err != nil {
		return err
	}
	if _, err := reminder.ParseTimeOfDay(p.RunTime); err != nil {
		return err
	}

	stored, err := e.api.UpdateMe(ctx, p)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return e.applyProfile(stored)
}

// applyProfile makes p the current profile: reminder times are cached and
// both reminders rescheduled, and the feasibility verdict is recomputed
// against the new target weight.
func (e *Engine) applyProfile(p models.Profile) error {
	wt, err := reminder.ParseTimeOfDay(p.WeighTime)
	if err != nil {
		return err
	}
	rt, err := reminder.ParseTimeOfDay(p.RunTime)
	if err != nil {
		return err
	}

	if err := e.store.SetReminderTimes(p.WeighTime, p.RunTime); err != nil {
		log.Printf("[Engine] Caching reminder times failed: %v", err)
	}
	e.sched.RescheduleBoth(wt, rt)

	e.mu.Lock()
	e.profile, e.profileSet = p, true
	e.reevaluateLocked()
	e.mu.Unlock()
	return nil
}

// LoadWeights fetches the weight series and recomputes the regression. A
// failed load leaves the prior state fully in place. When loads overlap,
// the state reflects the last load to complete whose generation is not
// older than the one already applied.
func (e *Engine) LoadWeights(ctx context.Context, start, end string) error {
	e.mu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	e.mu.Unlock()

	entries, err := e.api.ListWeights(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	obs := make([]trend.Observation, 0, len(entries))
	for _, w := range entries {
		d, err := time.Parse(dateLayout, w.Day)
		if err != nil {
			return fmt.Errorf("load weights: entry day %q: %w", w.Day, err)
		}
		obs = append(obs, trend.Observation{Day: d, Value: w.WeightKg})
	}

	series := trend.BuildSeries(obs)
	reg, ok := trend.Fit(series)
	var base time.Time
	if len(series) > 0 {
		base = series[0].Day
	}
	proj := trend.NewProjector(reg, ok, base)

	e.mu.Lock()
	if seq < e.appliedSeq {
		e.mu.Unlock()
		return nil // superseded by a newer completed load
	}
	e.appliedSeq = seq
	e.series = series
	e.proj = proj
	e.reevaluateLocked()
	e.mu.Unlock()

	e.publish(events.TrendUpdated, events.SeverityInfo, "Weight series reloaded", map[string]string{
		"points": fmt.Sprintf("%d", len(series)),
	})
	return nil
}

// AddWeight upserts one observation and reloads the series.
func (e *Engine) AddWeight(ctx context.Context, day time.Time, kg float64) error {
	entry := models.WeightEntry{Day: day.Format(dateLayout), WeightKg: kg}
	if err := e.api.UpsertWeight(ctx, entry); err != nil {
		return fmt.Errorf("save weight: %w", err)
	}
	return e.LoadWeights(ctx, "", "")
}

// AddRun upserts one run record.
func (e *Engine) AddRun(ctx context.Context, day time.Time, distanceKm, durationMin float64) error {
	entry := models.RunEntry{
		Day:         day.Format(dateLayout),
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
	}
	if err := e.api.UpsertRun(ctx, entry); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveGoalDate persists the goal target date and recomputes feasibility.
func (e *Engine) SaveGoalDate(d time.Time) error {
	if err := e.store.SetGoalDate(d); err != nil {
		return fmt.Errorf("save goal date: %w", err)
	}
	e.mu.Lock()
	e.goalDate, e.goalDateSet = d, true
	e.reevaluateLocked()
	e.mu.Unlock()
	return nil
}

// reevaluateLocked recomputes the feasibility verdict from current state
// and publishes a transition event when it changes. Caller holds e.mu.
func (e *Engine) reevaluateLocked() {
	prev := e.verdict

	var latest *float64
	if n := len(e.series); n > 0 {
		latest = &e.series[n-1].Y
	}
	var slope *float64
	if e.proj.Defined() {
		s := e.proj.Slope()
		slope = &s
	}

	verdict := trend.Undetermined
	if e.goalDateSet && e.profileSet {
		goal := trend.Goal{TargetValue: e.profile.TargetWeight, TargetDate: e.goalDate}
		verdict = trend.EvaluateGoal(latest, goal, slope, e.now())
	}
	e.verdict = verdict

	if verdict != prev {
		e.publish(events.GoalFeasibilityChanged, events.SeverityInfo,
			fmt.Sprintf("Goal feasibility is now %s", verdict),
			map[string]string{"verdict": verdict.String()})
	}
}

// Series returns a copy of the current observation series.
func (e *Engine) Series() []trend.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]trend.Point, len(e.series))
	copy(out, e.series)
	return out
}

// ObservedLine returns the observed series as chart coordinates.
func (e *Engine) ObservedLine() []trend.XY {
	e.mu.Lock()
	defer e.mu.Unlock()
	line := make([]trend.XY, len(e.series))
	for i, p := range e.series {
		line[i] = trend.XY{X: p.X, Y: p.Y}
	}
	return line
}

// ProjectionLine materializes the projection polyline from the last
// observed x over the given horizon. Empty when the regression is
// undefined or no data is loaded.
func (e *Engine) ProjectionLine(horizonDays int) []trend.XY {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.series) == 0 {
		return nil
	}
	return e.proj.Polyline(e.series[len(e.series)-1].X, horizonDays)
}

// ViewRange returns the padded display range for the observed values.
func (e *Engine) ViewRange() (lo, hi float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ys := make([]float64, len(e.series))
	for i, p := range e.series {
		ys[i] = p.Y
	}
	return trend.ViewRange(ys)
}

// WeeklyRate returns the formatted trend rate, or "" when undefined.
func (e *Engine) WeeklyRate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proj.WeeklyRate()
}

// Projector returns the current projector value.
func (e *Engine) Projector() trend.Projector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proj
}

// Verdict returns the current goal feasibility verdict.
func (e *Engine) Verdict() trend.Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verdict
}

// Profile returns the last applied profile.
func (e *Engine) Profile() (models.Profile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile, e.profileSet
}

// GoalDate returns the active goal target date, if one is set.
func (e *Engine) GoalDate() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goalDate, e.goalDateSet
}

func (e *Engine) publish(t events.EventType, sev events.Severity, msg string, meta map[string]string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Type: t, Severity: sev, Message: msg, Metadata: meta})
}
