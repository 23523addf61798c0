package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/otterable/minifitna/internal/models"
	"github.com/otterable/minifitna/internal/reminder"
	"github.com/otterable/minifitna/internal/store"
	"github.com/otterable/minifitna/internal/trend"
)

// stubAPI scripts backend responses.
type stubAPI struct {
	mu       sync.Mutex
	weights  []models.WeightEntry
	listErr  error
	profile  models.Profile
	meErr    error
	token    string
	loginErr error

	upsertedWeights []models.WeightEntry
	upsertedRuns    []models.RunEntry
	updated         *models.Profile
	setTokens       []string
	listCalls       int
}

func (s *stubAPI) Login(ctx context.Context, username, password string) (string, error) {
	return s.token, s.loginErr
}

func (s *stubAPI) ListWeights(ctx context.Context, start, end string) ([]models.WeightEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.weights, nil
}

func (s *stubAPI) UpsertWeight(ctx context.Context, entry models.WeightEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertedWeights = append(s.upsertedWeights, entry)
	return nil
}

func (s *stubAPI) ListRuns(ctx context.Context, start, end string) ([]models.RunEntry, error) {
	return nil, nil
}

func (s *stubAPI) UpsertRun(ctx context.Context, entry models.RunEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertedRuns = append(s.upsertedRuns, entry)
	return nil
}

func (s *stubAPI) Me(ctx context.Context) (models.Profile, error) {
	return s.profile, s.meErr
}

func (s *stubAPI) UpdateMe(ctx context.Context, p models.Profile) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = &p
	return p, nil
}

func (s *stubAPI) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTokens = append(s.setTokens, token)
}

// mockNotifier mirrors the scheduler's notification primitive.
type mockNotifier struct {
	mu   sync.Mutex
	live map[reminder.ID]time.Time
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{live: make(map[reminder.ID]time.Time)}
}

func (m *mockNotifier) ScheduleOnce(id reminder.ID, at time.Time, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[id] = at
	return nil
}

func (m *mockNotifier) Cancel(id reminder.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, id)
	return nil
}

func (m *mockNotifier) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T, api API) (*Engine, *store.Store, *mockNotifier) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	notifier := newMockNotifier()
	sched := reminder.NewScheduler(notifier, nil, func() time.Time { return testNow })
	e := New(api, st, sched, nil, func() time.Time { return testNow })
	return e, st, notifier
}

func weightsFixture() []models.WeightEntry {
	return []models.WeightEntry{
		{Day: "2026-03-08", WeightKg: 80.0},
		{Day: "2026-03-09", WeightKg: 79.5},
		{Day: "2026-03-10", WeightKg: 79.0},
	}
}

func TestLoadWeightsFitsRegression(t *testing.T) {
	api := &stubAPI{weights: weightsFixture()}
	e, _, _ := setupEngine(t, api)

	if err := e.LoadWeights(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}

	p := e.Projector()
	if !p.Defined() {
		t.Fatal("expected a defined regression after load")
	}
	if got := p.Slope(); got != -0.5 {
		t.Errorf("slope = %.4f, want -0.5", got)
	}
	if got := e.WeeklyRate(); got != "-3.5 kg/week" {
		t.Errorf("WeeklyRate = %q, want -3.5 kg/week", got)
	}
	if got := len(e.ObservedLine()); got != 3 {
		t.Errorf("observed line has %d points, want 3", got)
	}
	if got := len(e.ProjectionLine(14)); got != 15 {
		t.Errorf("projection line has %d points, want 15", got)
	}
}

func TestFailedLoadKeepsPriorState(t *testing.T) {
	api := &stubAPI{weights: weightsFixture()}
	e, _, _ := setupEngine(t, api)

	if err := e.LoadWeights(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}

	api.mu.Lock()
	api.listErr = errors.New("connection refused")
	api.mu.Unlock()

	if err := e.LoadWeights(context.Background(), "", ""); err == nil {
		t.Fatal("expected an error from the failed load")
	}

	if got := len(e.Series()); got != 3 {
		t.Errorf("series has %d points after failed load, want prior 3", got)
	}
	if !e.Projector().Defined() {
		t.Error("regression must survive a failed load")
	}
}

func TestGoalFeasibilityAfterLoad(t *testing.T) {
	api := &stubAPI{
		weights: weightsFixture(),
		profile: models.Profile{TargetWeight: 75, WeighTime: "08:00", RunTime: "18:00"},
	}
	e, _, _ := setupEngine(t, api)

	if err := e.syncProfile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.SaveGoalDate(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadWeights(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}

	// latest 79, target 75, 10 days → required -0.4/day; slope -0.5 suffices.
	if got := e.Verdict(); got != trend.Feasible {
		t.Errorf("verdict = %s, want feasible", got)
	}
}

func TestVerdictUndeterminedWithoutGoalDate(t *testing.T) {
	api := &stubAPI{weights: weightsFixture()}
	e, _, _ := setupEngine(t, api)

	if err := e.LoadWeights(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}

	if got := e.Verdict(); got != trend.Undetermined {
		t.Errorf("verdict = %s, want undetermined without a goal date", got)
	}
}

func TestSaveSettingsParseFailureBlocksNetwork(t *testing.T) {
	api := &stubAPI{}
	e, _, _ := setupEngine(t, api)

	err := e.SaveSettings(context.Background(), models.Profile{
		TargetWeight: 75, WeighTime: "25:00", RunTime: "18:00",
	})

	if err == nil {
		t.Fatal("expected a parse error")
	}
	if api.updated != nil {
		t.Error("malformed input must never reach the network")
	}
}

func TestSaveSettingsReschedulesReminders(t *testing.T) {
	api := &stubAPI{}
	e, st, notifier := setupEngine(t, api)

	err := e.SaveSettings(context.Background(), models.Profile{
		TargetWeight: 75, WeighTime: "07:30", RunTime: "19:15",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := notifier.liveCount(); got != 2 {
		t.Fatalf("expected 2 live reminders, got %d", got)
	}
	weigh, run, ok, err := st.ReminderTimes()
	if err != nil || !ok {
		t.Fatalf("reminder times not cached: ok=%v err=%v", ok, err)
	}
	if weigh != "07:30" || run != "19:15" {
		t.Errorf("cached times = %q/%q", weigh, run)
	}
}

func TestRestoreWithoutSession(t *testing.T) {
	api := &stubAPI{}
	e, _, _ := setupEngine(t, api)

	if err := e.Restore(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestRestoreArmsRemindersFromCache(t *testing.T) {
	api := &stubAPI{meErr: errors.New("network down")}
	e, st, notifier := setupEngine(t, api)

	st.SetToken("cached-token")
	st.SetReminderTimes("07:00", "19:00")
	st.SetGoalDate(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	if err := e.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := notifier.liveCount(); got != 2 {
		t.Errorf("expected 2 reminders armed from cache, got %d", got)
	}
	if len(api.setTokens) != 1 || api.setTokens[0] != "cached-token" {
		t.Errorf("cached token not installed on client: %v", api.setTokens)
	}
	if _, ok := e.GoalDate(); !ok {
		t.Error("stored goal date not loaded")
	}
}

func TestLoginCachesTokenAndAppliesProfile(t *testing.T) {
	api := &stubAPI{
		token:   "fresh-token",
		profile: models.Profile{TargetWeight: 75, WeighTime: "08:00", RunTime: "18:00"},
	}
	e, st, notifier := setupEngine(t, api)

	if err := e.Login(context.Background(), "anna", "pw"); err != nil {
		t.Fatal(err)
	}

	if tok, _ := st.Token(); tok != "fresh-token" {
		t.Errorf("cached token = %q", tok)
	}
	if got := notifier.liveCount(); got != 2 {
		t.Errorf("expected 2 reminders after login, got %d", got)
	}
	if _, ok := e.Profile(); !ok {
		t.Error("profile not applied after login")
	}
}

func TestAddWeightUpsertsAndReloads(t *testing.T) {
	api := &stubAPI{weights: weightsFixture()}
	e, _, _ := setupEngine(t, api)

	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if err := e.AddWeight(context.Background(), day, 78.6); err != nil {
		t.Fatal(err)
	}

	if len(api.upsertedWeights) != 1 || api.upsertedWeights[0].Day != "2026-03-11" {
		t.Errorf("upserted = %+v", api.upsertedWeights)
	}
	if api.listCalls != 1 {
		t.Errorf("expected a reload after upsert, got %d list calls", api.listCalls)
	}
}
