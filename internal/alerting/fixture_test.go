package alerting

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/conf"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/insights"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
	"github.com/tphakala/sentinel/internal/scheduler"
	"github.com/tphakala/sentinel/internal/testutil/authztest"
	"github.com/tphakala/sentinel/internal/testutil/dbtest"
)

var (
	testNow      = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	minimumStart = conf.DefaultMinimumOnboardingStartTime
)

type stubProvider struct {
	interval insights.Interval
	err      error
}

func (s *stubProvider) DatasetInterval(context.Context, *entities.Alert) (insights.Interval, error) {
	return s.interval, s.err
}

type stubEvaluator struct {
	results map[string]model.DetectionEvaluation
	gotFrom int64
	gotTo   int64
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ *entities.Alert, start, end int64) (map[string]model.DetectionEvaluation, error) {
	s.gotFrom, s.gotTo = start, end
	return s.results, nil
}

type fixture struct {
	svc       *Service
	alerts    repository.AlertRepository
	anomalies repository.AnomalyRepository
	items     repository.EnumerationItemRepository
	groups    repository.SubscriptionGroupRepository
	tasks     repository.TaskRepository
	clock     *clockwork.FakeClock
}

type fixtureOption func(*Config, *Deps)

func withProvider(p insights.Provider) fixtureOption {
	return func(_ *Config, d *Deps) { d.Insights = p }
}

func withEvaluator(e Evaluator) fixtureOption {
	return func(_ *Config, d *Deps) { d.Evaluator = e }
}

func withAccess(a authz.AccessControl) fixtureOption {
	return func(_ *Config, d *Deps) { d.Access = a }
}

func withClockMargin(margin time.Duration) fixtureOption {
	return func(c *Config, _ *Deps) { c.EndTimeClockMargin = margin }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	db := dbtest.NewSQLite(t)
	f := &fixture{
		alerts:    repository.NewAlertRepository(db),
		anomalies: repository.NewAnomalyRepository(db),
		items:     repository.NewEnumerationItemRepository(db),
		groups:    repository.NewSubscriptionGroupRepository(db),
		tasks:     repository.NewTaskRepository(db),
		clock:     clockwork.NewFakeClockAt(testNow),
	}
	cfg := Config{
		MinimumOnboardingStartTime: minimumStart,
		DefaultCron:                DefaultCron,
		CronMaxTriggersPerMinute:   6,
	}
	deps := Deps{
		Alerts:             f.alerts,
		Anomalies:          f.anomalies,
		EnumerationItems:   f.items,
		SubscriptionGroups: f.groups,
		Access:             authztest.New(t),
		Tasks:              scheduler.NewDatabaseScheduler(f.tasks, f.clock, nil),
		Lifecycle:          lifecycle.Deps{Clock: f.clock},
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	f.svc = NewService(cfg, deps)
	return f
}

func (f *fixture) create(t *testing.T, p authz.Principal, alert *model.Alert) *model.Alert {
	t.Helper()
	created, err := f.svc.CreateMultiple(t.Context(), p, []*model.Alert{alert})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

func (f *fixture) detectionTasks(t *testing.T, alertID uint) [][2]int64 {
	t.Helper()
	tasks, err := f.tasks.ListByRef(t.Context(), alertID, entities.TaskTypeDetection)
	require.NoError(t, err)
	windows := make([][2]int64, 0, len(tasks))
	for _, task := range tasks {
		windows = append(windows, [2]int64{task.StartTime, task.EndTime})
	}
	return windows
}

// advanceWatermark simulates detection progress written by the workers.
func (f *fixture) advanceWatermark(t *testing.T, alertID uint, to int64) {
	t.Helper()
	stored, err := f.alerts.Get(t.Context(), alertID)
	require.NoError(t, err)
	stored.LastTimestamp = to
	require.NoError(t, f.alerts.Update(t.Context(), stored))
}

func (f *fixture) addAnomaly(t *testing.T, alertID uint, item *uint, start, end int64) {
	t.Helper()
	require.NoError(t, f.anomalies.Create(t.Context(), &entities.Anomaly{
		BaseEntity:        entities.BaseEntity{Namespace: "tenant-a", CreateTime: testNow, UpdateTime: testNow},
		AlertID:           alertID,
		EnumerationItemID: item,
		StartTime:         start,
		EndTime:           end,
		Metric:            "latency_p95",
	}))
}

func (f *fixture) addItem(t *testing.T, alertID uint, name string) uint {
	t.Helper()
	item := &entities.EnumerationItem{
		BaseEntity: entities.BaseEntity{Namespace: "tenant-a", CreateTime: testNow, UpdateTime: testNow},
		AlertID:    alertID,
		Name:       name,
	}
	require.NoError(t, f.items.Create(t.Context(), item))
	return item.ID
}

func alertNamed(name string) *model.Alert {
	return &model.Alert{Name: name, TemplateProperties: map[string]any{"dataset": "web"}}
}

func ms(t time.Time) int64 {
	return t.UnixMilli()
}

func ptr[T any](v T) *T {
	return &v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
