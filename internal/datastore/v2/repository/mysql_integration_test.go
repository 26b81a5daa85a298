//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/testutil/containers"
)

// MySQL test container shared across all tests in this package
var mysqlContainer *containers.MySQLContainer

// TestMain starts MySQL once and migrates the entity schema.
func TestMain(m *testing.M) {
	var err error
	ctx := context.Background()

	mysqlContainer, err = containers.NewMySQLContainer(ctx, nil)
	if err != nil {
		panic("failed to create MySQL container: " + err.Error())
	}

	if err := mysqlContainer.DB().AutoMigrate(entities.All()...); err != nil {
		_ = mysqlContainer.Terminate(context.Background())
		panic("failed to run migrations: " + err.Error())
	}

	code := m.Run()

	if err := mysqlContainer.Terminate(context.Background()); err != nil {
		panic("failed to terminate MySQL container: " + err.Error())
	}
	os.Exit(code)
}

// resetDatabase truncates all entity tables to isolate tests.
func resetDatabase(t *testing.T) {
	t.Helper()
	err := mysqlContainer.Truncate(t.Context(),
		"alerts", "anomalies", "enumeration_items", "subscription_groups", "tasks")
	require.NoError(t, err, "failed to reset database")
}

func stamp(namespace string) entities.BaseEntity {
	now := time.Now().UTC().Truncate(time.Second)
	return entities.BaseEntity{Namespace: namespace, CreatedBy: "it", CreateTime: now, UpdatedBy: "it", UpdateTime: now}
}

func TestMySQL_AlertCRUD(t *testing.T) {
	resetDatabase(t)
	ctx := t.Context()
	repo := repository.NewAlertRepository(mysqlContainer.DB())

	alert := &entities.Alert{
		BaseEntity:         stamp("tenant-a"),
		Name:               "orders",
		Cron:               "0 * * * * *",
		Active:             true,
		TemplateProperties: datatypes.JSONMap{"dataset": "orders", "threshold": 3.5},
	}
	require.NoError(t, repo.Create(ctx, alert))

	got, err := repo.Get(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Dataset())
	assert.InDelta(t, 3.5, got.TemplateProperties["threshold"], 0.001)

	byName, err := repo.FindByName(ctx, "tenant-a", "orders")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	require.NoError(t, repo.Delete(ctx, alert.ID))
	_, err = repo.Get(ctx, alert.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMySQL_FilterOperators(t *testing.T) {
	resetDatabase(t)
	ctx := t.Context()
	repo := repository.NewAnomalyRepository(mysqlContainer.DB())

	for i := range 5 {
		require.NoError(t, repo.Create(ctx, &entities.Anomaly{
			BaseEntity: stamp("tenant-a"),
			AlertID:    7,
			StartTime:  int64(i * 1000),
			EndTime:    int64(i*1000 + 500),
		}))
	}

	rows, err := repo.List(ctx, repository.InNamespace("tenant-a").
		Where("alert_id", repository.OpEq, 7).
		Where("start_time", repository.OpGte, 2000))
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	deleted, err := repo.DeleteByAlertID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
}

func TestMySQL_SubscriptionGroupJSONColumns(t *testing.T) {
	resetDatabase(t)
	ctx := t.Context()
	repo := repository.NewSubscriptionGroupRepository(mysqlContainer.DB())

	enumID := uint(11)
	group := &entities.SubscriptionGroup{
		BaseEntity: stamp("tenant-a"),
		Name:       "pager",
		AlertAssociations: datatypes.JSONSlice[entities.AlertAssociation]{
			{AlertID: 1, EnumerationItemID: &enumID, CreateTime: time.Now().UTC()},
		},
	}
	require.NoError(t, repo.Create(ctx, group))

	got, err := repo.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, got.AlertAssociations, 1)
	assert.Equal(t, enumID, *got.AlertAssociations[0].EnumerationItemID)
}
