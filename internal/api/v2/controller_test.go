package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/alerting"
	"github.com/tphakala/sentinel/internal/anomaly"
	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/enumeration"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/model"
	"github.com/tphakala/sentinel/internal/scheduler"
	"github.com/tphakala/sentinel/internal/subscription"
	"github.com/tphakala/sentinel/internal/testutil/authztest"
	"github.com/tphakala/sentinel/internal/testutil/dbtest"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	e     *echo.Echo
	tasks repository.TaskRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.NewSQLite(t)
	access := authztest.New(t)
	clock := clockwork.NewFakeClockAt(testNow)
	deps := lifecycle.Deps{Clock: clock}

	alerts := repository.NewAlertRepository(db)
	anomalies := repository.NewAnomalyRepository(db)
	items := repository.NewEnumerationItemRepository(db)
	groups := repository.NewSubscriptionGroupRepository(db)
	tasks := repository.NewTaskRepository(db)

	e := echo.New()
	New(e, Services{
		Alerts: alerting.NewService(alerting.Config{}, alerting.Deps{
			Alerts:             alerts,
			Anomalies:          anomalies,
			EnumerationItems:   items,
			SubscriptionGroups: groups,
			Access:             access,
			Tasks:              scheduler.NewDatabaseScheduler(tasks, clock, nil),
			Lifecycle:          deps,
		}),
		SubscriptionGroups: subscription.NewService(subscription.Config{}, groups, access, deps),
		EnumerationItems:   enumeration.NewManager(items, alerts, access, deps),
		Anomalies:          anomaly.NewManager(anomalies, alerts, items, access, deps),
	}, nil)
	return &fixture{e: e, tasks: tasks}
}

func (f *fixture) do(t *testing.T, p *authz.Principal, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if p != nil {
		req.Header.Set(HeaderPrincipal, p.Name)
		req.Header.Set(HeaderNamespace, p.Namespace)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *fixture) createAlert(t *testing.T, name string) uint {
	t.Helper()
	rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts", `[{"name":"`+name+`"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[[]model.Alert](t, rec)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].ID)
	return *created[0].ID
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, nil, http.MethodGet, "/api/v2/alerts", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlerts_CRUD(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createAlert(t, "checkout")
	path := "/api/v2/alerts/" + uintString(id)

	rec := f.do(t, &authztest.Viewer, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Alert](t, rec)
	assert.Equal(t, "checkout", got.Name)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, alerting.DefaultCron, got.Cron)

	rec = f.do(t, &authztest.Outsider, http.MethodGet, path, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(errors.CategoryForbidden), decode[ErrorResponse](t, rec).Category)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &authztest.Editor, http.MethodPut, "/api/v2/alerts",
		`[{"id":`+uintString(id)+`,"name":"checkout","description":"p95 latency","lastTimestamp":1}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[[]model.Alert](t, rec)
	require.Len(t, edited, 1)
	assert.Equal(t, "p95 latency", edited[0].Description)
	assert.Equal(t, got.LastTimestamp, edited[0].LastTimestamp)

	rec = f.do(t, &authztest.Viewer, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, &authztest.Editor, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "checkout", decode[model.Alert](t, rec).Name)

	rec = f.do(t, &authztest.Editor, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAlerts_ListAndCount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.createAlert(t, "checkout")
	f.createAlert(t, "payments")

	rec := f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts?name=payments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]model.Alert](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "payments", listed[0].Name)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int64{"count": 2}, decode[map[string]int64](t, rec))

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &authztest.Outsider, http.MethodGet, "/api/v2/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Alert](t, rec))
}

func TestAlerts_CreateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not an array", `{"name":"x"}`, http.StatusBadRequest},
		{"malformed cron", `[{"name":"x","cron":"sometimes"}]`, http.StatusBadRequest},
		{"too frequent", `[{"name":"x","cron":"* * * * * *"}]`, http.StatusTooManyRequests},
		{"client id", `[{"id":5,"name":"x"}]`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAlerts_PartialCreate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts", `[{"name":"a"},{"name":"a"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Error     string        `json:"error"`
		Succeeded []model.Alert `json:"succeeded"`
	}](t, rec)
	assert.Contains(t, body.Error, "already exists")
	require.Len(t, body.Succeeded, 1)
	assert.Equal(t, "a", body.Succeeded[0].Name)
}

func TestAlerts_ResetRunInsights(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createAlert(t, "checkout")
	base := "/api/v2/alerts/" + uintString(id)

	rec := f.do(t, &authztest.Viewer, http.MethodPost, base+"/reset", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, &authztest.Editor, http.MethodPost, base+"/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, &authztest.Editor, http.MethodPost, base+"/run", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "start is required")
	rec = f.do(t, &authztest.Editor, http.MethodPost, base+"/run?start=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	start := testNow.Add(-time.Hour).UnixMilli()
	rec = f.do(t, &authztest.Editor, http.MethodPost, base+"/run?start="+int64String(start), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	task := decode[model.Task](t, rec)
	assert.Equal(t, id, task.RefID)
	assert.Equal(t, start, task.StartTime)
	assert.Equal(t, testNow.UnixMilli(), task.EndTime)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, base+"/insights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	insights := decode[model.AlertInsights](t, rec)
	assert.Equal(t, testNow.UnixMilli(), insights.DefaultEndTime)
}

func TestAlerts_EvaluateAndValidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts/evaluate", `{"alert":{"name":"draft"},"start":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[model.AlertEvaluation](t, rec)
	require.NotNil(t, result.End)
	assert.Equal(t, testNow.UnixMilli(), *result.End)

	rec = f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts/evaluate", `{"start":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts/validate", `[{"name":"draft"}]`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/alerts/validate", `[{"name":"draft","cron":"nope"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts/count", "")
	assert.Equal(t, map[string]int64{"count": 0}, decode[map[string]int64](t, rec), "nothing was saved")
}

func TestSubscriptionGroups(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alertID := f.createAlert(t, "checkout")

	rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/subscription-groups",
		`[{"name":"oncall","alertAssociations":[{"alert":{"id":`+uintString(alertID)+`}}]}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[[]model.SubscriptionGroup](t, rec)
	require.Len(t, created, 1)
	require.Len(t, created[0].AlertAssociations, 1)
	assert.NotNil(t, created[0].AlertAssociations[0].Created)

	rec = f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/subscription-groups/"+uintString(*created[0].ID)+"/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, &authztest.Editor, http.MethodDelete, "/api/v2/alerts/"+uintString(alertID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/subscription-groups/"+uintString(*created[0].ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.SubscriptionGroup](t, rec).AlertAssociations, "deleting the alert detaches it")
}

func TestEnumerationItemsAndAnomalies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alertID := f.createAlert(t, "checkout")
	alertRef := `{"id":` + uintString(alertID) + `}`

	rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/enumeration-items", `[{"alert":`+alertRef+`,"name":"eu"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[[]model.EnumerationItem](t, rec)[0]

	rec = f.do(t, &authztest.Editor, http.MethodPut, "/api/v2/enumeration-items", `[]`)
	assert.Contains(t, []int{http.StatusMethodNotAllowed, http.StatusNotFound}, rec.Code, "items have no edit route")

	rec = f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/anomalies",
		`[{"alert":`+alertRef+`,"enumerationItem":{"id":`+uintString(*item.ID)+`},"startTime":100,"endTime":200}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/anomalies?alert.id="+uintString(alertID)+"&startTime=%5Bgte%5D100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Anomaly](t, rec), 1)

	rec = f.do(t, &authztest.Editor, http.MethodDelete, "/api/v2/anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"deleted": 1}, decode[map[string]int](t, rec))
}

func TestAlerts_StatsAndUnsavedInsights(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alertID := f.createAlert(t, "checkout")
	alertRef := `{"id":` + uintString(alertID) + `}`

	rec := f.do(t, &authztest.Editor, http.MethodPost, "/api/v2/anomalies", `[`+
		`{"alert":`+alertRef+`,"startTime":100,"endTime":200,"feedback":"ANOMALY"},`+
		`{"alert":`+alertRef+`,"startTime":300,"endTime":400,"feedback":"NOT_ANOMALY"},`+
		`{"alert":`+alertRef+`,"startTime":500,"endTime":600},`+
		`{"alert":`+alertRef+`,"startTime":500,"endTime":600,"isChild":true,"feedback":"ANOMALY"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	base := "/api/v2/alerts/" + uintString(alertID) + "/stats"
	rec = f.do(t, &authztest.Viewer, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[model.AnomalyStats](t, rec)
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(2), stats.CountWithFeedback)
	assert.Equal(t, map[string]int64{
		"ANOMALY":           1,
		"ANOMALY_EXPECTED":  0,
		"ANOMALY_NEW_TREND": 0,
		"NOT_ANOMALY":       1,
		"NO_FEEDBACK":       0,
	}, stats.FeedbackStats)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, base+"?startTime=250&endTime=600", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats = decode[model.AnomalyStats](t, rec)
	assert.Equal(t, int64(2), stats.TotalCount)
	assert.Equal(t, int64(1), stats.CountWithFeedback)

	rec = f.do(t, &authztest.Viewer, http.MethodGet, base+"?enumerationId=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, &authztest.Outsider, http.MethodGet, base, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, &authztest.Viewer, http.MethodGet, "/api/v2/alerts/9999/stats", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, &authztest.Viewer, http.MethodPost, "/api/v2/alerts/insights", `{"alert":{"name":"draft"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	insights := decode[model.AlertInsights](t, rec)
	assert.Equal(t, testNow.UnixMilli(), insights.DefaultEndTime)

	rec = f.do(t, &authztest.Viewer, http.MethodPost, "/api/v2/alerts/insights", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	build := func(c errors.ErrorCategory) error {
		return errors.Newf("boom").Category(c).Build()
	}
	tests := []struct {
		err  error
		want int
	}{
		{build(errors.CategoryNotFound), http.StatusNotFound},
		{build(errors.CategoryForbidden), http.StatusForbidden},
		{build(errors.CategoryValidation), http.StatusBadRequest},
		{build(errors.CategoryRateLimit), http.StatusTooManyRequests},
		{build(errors.CategoryConflict), http.StatusConflict},
		{build(errors.CategoryDatabase), http.StatusInternalServerError},
		{errors.NewStd("plain"), http.StatusInternalServerError},
		{errors.Join(errors.NewStd("plain"), build(errors.CategoryForbidden)), http.StatusForbidden},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func uintString(v uint) string {
	return int64String(int64(v))
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
