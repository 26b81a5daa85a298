package anomaly

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
	"github.com/tphakala/sentinel/internal/testutil/authztest"
	"github.com/tphakala/sentinel/internal/testutil/dbtest"
)

type fixture struct {
	manager *Manager
	alerts  [2]uint
	item    uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.NewSQLite(t)
	alerts := repository.NewAlertRepository(db)
	items := repository.NewEnumerationItemRepository(db)
	base := entities.BaseEntity{Namespace: "tenant-a", CreateTime: time.Now(), UpdateTime: time.Now()}

	f := &fixture{}
	for i, name := range []string{"orders", "payments"} {
		alert := &entities.Alert{BaseEntity: base, Name: name, Cron: "0 * * * * *", Active: true}
		require.NoError(t, alerts.Create(t.Context(), alert))
		f.alerts[i] = alert.ID
	}
	item := &entities.EnumerationItem{BaseEntity: base, AlertID: f.alerts[0], Name: "eu"}
	require.NoError(t, items.Create(t.Context(), item))
	f.item = item.ID

	f.manager = NewManager(repository.NewAnomalyRepository(db), alerts, items, authztest.New(t), lifecycle.Deps{})
	return f
}

func (f *fixture) anomaly(alertID uint, item *uint, start, end int64) *model.Anomaly {
	a := &model.Anomaly{Alert: model.NewRef(alertID), StartTime: start, EndTime: end, Metric: "latency_p95"}
	if item != nil {
		a.EnumerationItem = model.NewRef(*item)
	}
	return a
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	foreignItem := f.item

	tests := []struct {
		name    string
		anomaly *model.Anomaly
	}{
		{"missing alert", &model.Anomaly{StartTime: 1, EndTime: 2}},
		{"unknown alert", f.anomaly(999, nil, 1, 2)},
		{"inverted window", f.anomaly(f.alerts[0], nil, 5, 2)},
		{"unknown item", f.anomaly(f.alerts[0], ptr(uint(999)), 1, 2)},
		{"item of another alert", f.anomaly(f.alerts[1], &foreignItem, 1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.CreateMultiple(t.Context(), authztest.Editor, []*model.Anomaly{tt.anomaly})
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err), "unexpected error: %v", err)
		})
	}
}

func TestList_Filters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.manager.CreateMultiple(t.Context(), authztest.Editor, []*model.Anomaly{
		f.anomaly(f.alerts[0], nil, 100, 200),
		f.anomaly(f.alerts[0], &f.item, 300, 400),
		f.anomaly(f.alerts[1], nil, 500, 600),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		params map[string][]string
		want   []int64
	}{
		{"by alert", map[string][]string{"alert.id": {id(f.alerts[0])}}, []int64{100, 300}},
		{"by item", map[string][]string{"enumerationItem.id": {id(f.item)}}, []int64{300}},
		{"by window", map[string][]string{"startTime": {"[gte]250"}, "endTime": {"[lte]600"}}, []int64{300, 500}},
		{"not child", map[string][]string{"isChild": {"false"}}, []int64{100, 300, 500}},
		{"unmapped parameter", map[string][]string{"severity": {"HIGH"}}, []int64{100, 300, 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.manager.List(t.Context(), authztest.Viewer, tt.params)
			require.NoError(t, err)
			starts := make([]int64, 0, len(got))
			for _, a := range got {
				starts = append(starts, a.StartTime)
			}
			assert.Equal(t, tt.want, starts)
		})
	}

	n, err := f.manager.Count(t.Context(), authztest.Viewer, map[string][]string{"alert.id": {id(f.alerts[1])}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestList_OtherNamespace(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.manager.CreateMultiple(t.Context(), authztest.Editor, []*model.Anomaly{f.anomaly(f.alerts[0], nil, 1, 2)})
	require.NoError(t, err)

	got, err := f.manager.List(t.Context(), authztest.Outsider, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func id(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func ptr[T any](v T) *T {
	return &v
}
