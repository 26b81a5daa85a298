package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// TestAlertJSONKeys verifies that persisted alerts serialize with snake_case
// keys, including the promoted base entity columns.
func TestAlertJSONKeys(t *testing.T) {
	t.Parallel()

	alert := Alert{
		BaseEntity: BaseEntity{
			ID:         42,
			Namespace:  "tenant-a",
			CreatedBy:  "alice",
			CreateTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Name:               "cpu",
		Cron:               "0 * * * * *",
		LastTimestamp:      1_700_000_000_000,
		TemplateProperties: datatypes.JSONMap{"dataset": "system"},
	}

	data, err := json.Marshal(alert)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{
		"id", "namespace", "created_by", "create_time", "updated_by", "update_time",
		"name", "cron", "last_timestamp", "active", "template_properties",
	} {
		assert.Contains(t, m, key, "JSON should contain snake_case key %q", key)
	}
	assert.NotContains(t, m, "BaseEntity")
	assert.Equal(t, "system", alert.Dataset())
}

func TestAlert_DatasetMissing(t *testing.T) {
	t.Parallel()

	assert.Empty(t, (&Alert{}).Dataset())
	assert.Empty(t, (&Alert{TemplateProperties: datatypes.JSONMap{"dataset": 3}}).Dataset())
}

func TestAlertAssociation_Key(t *testing.T) {
	t.Parallel()

	zero := uint(0)
	seven := uint(7)

	plain := AlertAssociation{AlertID: 1}
	enumZero := AlertAssociation{AlertID: 1, EnumerationItemID: &zero}
	enumSeven := AlertAssociation{AlertID: 1, EnumerationItemID: &seven}

	assert.Equal(t, plain.Key(), AlertAssociation{AlertID: 1, CreateTime: time.Now()}.Key())
	assert.NotEqual(t, plain.Key(), enumZero.Key(), "nil enumeration item must differ from id 0")
	assert.NotEqual(t, enumZero.Key(), enumSeven.Key())
}

func TestEntities_ResourceTypes(t *testing.T) {
	t.Parallel()

	var e Entity = &Alert{}
	assert.Equal(t, ResourceAlert, e.ResourceType())
	assert.Same(t, &e.(*Alert).BaseEntity, e.Base())

	assert.Equal(t, ResourceSubscriptionGroup, (&SubscriptionGroup{}).ResourceType())
	assert.Equal(t, ResourceEnumerationItem, (&EnumerationItem{}).ResourceType())
	assert.Equal(t, ResourceAnomaly, (&Anomaly{}).ResourceType())
	assert.Equal(t, ResourceTask, (&Task{}).ResourceType())
	assert.Len(t, All(), 5)
}

func TestSubscriptionGroup_RemoveAlert(t *testing.T) {
	t.Parallel()

	item := uint(3)
	group := SubscriptionGroup{
		Properties: datatypes.JSONMap{
			LegacyAlertIDsProperty: []any{float64(1), float64(2), "junk"},
			"owner":                "ops",
		},
		AlertAssociations: datatypes.JSONSlice[AlertAssociation]{
			{AlertID: 1},
			{AlertID: 1, EnumerationItemID: &item},
			{AlertID: 2},
		},
	}

	assert.True(t, group.RemoveAlert(1))
	assert.Equal(t, []any{float64(2), "junk"}, group.Properties[LegacyAlertIDsProperty])
	require.Len(t, group.AlertAssociations, 1)
	assert.Equal(t, uint(2), group.AlertAssociations[0].AlertID)
	assert.Equal(t, "ops", group.Properties["owner"])

	assert.False(t, group.RemoveAlert(1), "removing twice is a no-op")
	assert.False(t, (&SubscriptionGroup{}).RemoveAlert(1))
}

func TestSubscriptionGroup_LegacyAlertIDsAfterRoundTrip(t *testing.T) {
	t.Parallel()

	group := SubscriptionGroup{Properties: datatypes.JSONMap{LegacyAlertIDsProperty: []uint{4, 5}}}
	data, err := json.Marshal(group)
	require.NoError(t, err)

	var decoded SubscriptionGroup
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []uint{4, 5}, decoded.LegacyAlertIDs())

	assert.True(t, decoded.RemoveAlert(5))
	assert.Equal(t, []uint{4}, decoded.LegacyAlertIDs())
}
