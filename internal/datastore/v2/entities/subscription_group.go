package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// LegacyAlertIDsProperty is the key of the free-form property that older
// clients used to list subscribed alert ids.
const LegacyAlertIDsProperty = "alertIds"

// SubscriptionGroup routes anomalies of its associated alerts to notification
// channels.
type SubscriptionGroup struct {
	BaseEntity
	Name              string                                `gorm:"size:255;not null;index" json:"name"`
	Cron              string                                `gorm:"size:100;default:''" json:"cron"`
	Active            bool                                  `gorm:"not null" json:"active"`
	NotificationSpecs datatypes.JSONSlice[NotificationSpec] `json:"notification_specs"`
	AlertAssociations datatypes.JSONSlice[AlertAssociation] `json:"alert_associations"`
	Properties        datatypes.JSONMap                     `json:"properties"`
}

// TableName returns the table name for GORM.
func (SubscriptionGroup) TableName() string {
	return "subscription_groups"
}

// ResourceType implements Entity.
func (SubscriptionGroup) ResourceType() string {
	return ResourceSubscriptionGroup
}

// NotificationSpec describes one notification channel.
type NotificationSpec struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// AlertAssociation links a group to an alert, or to one enumeration item of
// the alert. CreateTime and AnomalyCompletionWatermark are system-owned.
type AlertAssociation struct {
	AlertID                    uint       `json:"alert_id"`
	EnumerationItemID          *uint      `json:"enumeration_item_id,omitempty"`
	CreateTime                 time.Time  `json:"create_time"`
	AnomalyCompletionWatermark *time.Time `json:"anomaly_completion_watermark,omitempty"`
}

// AssociationKey identifies an association within a group.
type AssociationKey struct {
	AlertID           uint
	EnumerationItemID uint
	HasEnumeration    bool
}

// Key returns the composite (alert, enumeration item or nil) key.
func (a AlertAssociation) Key() AssociationKey {
	if a.EnumerationItemID == nil {
		return AssociationKey{AlertID: a.AlertID}
	}
	return AssociationKey{AlertID: a.AlertID, EnumerationItemID: *a.EnumerationItemID, HasEnumeration: true}
}

// RemoveAlert drops every reference to alertID from the group: entries of the
// legacy alertIds property and all associations of the alert. It reports
// whether the group changed.
func (g *SubscriptionGroup) RemoveAlert(alertID uint) bool {
	changed := g.removeLegacyAlertID(alertID)

	kept := g.AlertAssociations[:0:0]
	for _, a := range g.AlertAssociations {
		if a.AlertID == alertID {
			changed = true
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) != len(g.AlertAssociations) {
		g.AlertAssociations = kept
	}
	return changed
}

// LegacyAlertIDs returns the ids listed in the legacy alertIds property.
// Unparseable entries are skipped.
func (g *SubscriptionGroup) LegacyAlertIDs() []uint {
	raw, ok := g.Properties[LegacyAlertIDsProperty]
	if !ok {
		return nil
	}
	var ids []uint
	for _, v := range legacyValues(raw) {
		if id, ok := toAlertID(v); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *SubscriptionGroup) removeLegacyAlertID(alertID uint) bool {
	raw, ok := g.Properties[LegacyAlertIDsProperty]
	if !ok {
		return false
	}
	values := legacyValues(raw)
	kept := make([]any, 0, len(values))
	for _, v := range values {
		if id, ok := toAlertID(v); ok && id == alertID {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == len(values) {
		return false
	}
	g.Properties[LegacyAlertIDsProperty] = kept
	return true
}

func legacyValues(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []uint:
		out := make([]any, len(v))
		for i, id := range v {
			out[i] = id
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, id := range v {
			out[i] = id
		}
		return out
	default:
		return nil
	}
}

func toAlertID(v any) (uint, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(uint(n)) {
			return 0, false
		}
		return uint(n), true
	case int:
		return uint(n), n >= 0
	case int64:
		return uint(n), n >= 0
	case uint:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return uint(i), err == nil && i >= 0
	default:
		return 0, false
	}
}
