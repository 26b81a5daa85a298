package model

import (
	"maps"
	"time"

	"gorm.io/datatypes"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// AuditableFrom renders the system fields of a persisted entity.
func AuditableFrom(b *entities.BaseEntity) Auditable {
	id := b.ID
	return Auditable{
		ID:        &id,
		Namespace: b.Namespace,
		CreatedBy: b.CreatedBy,
		Created:   timePtr(b.CreateTime),
		UpdatedBy: b.UpdatedBy,
		Updated:   timePtr(b.UpdateTime),
	}
}

// baseFrom copies the client-settable identity fields. Audit fields are
// stamped by the lifecycle manager.
func baseFrom(a Auditable) entities.BaseEntity {
	b := entities.BaseEntity{Namespace: a.Namespace}
	if a.ID != nil {
		b.ID = *a.ID
	}
	return b
}

func jsonMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	return datatypes.JSONMap(maps.Clone(m))
}

func plainMap(m datatypes.JSONMap) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(map[string]any(m))
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// ToAlertEntity maps an alert representation to a row. LastTimestamp is
// copied so that policies can decide whether to honour it.
func ToAlertEntity(a *Alert) *entities.Alert {
	e := &entities.Alert{
		BaseEntity:         baseFrom(a.Auditable),
		Name:               a.Name,
		Description:        a.Description,
		Cron:               a.Cron,
		LastTimestamp:      a.LastTimestamp,
		Active:             boolOr(a.Active, true),
		Owner:              a.Owner,
		TemplateProperties: jsonMap(a.TemplateProperties),
	}
	if a.Template != nil {
		e.Template = a.Template.Name
	}
	return e
}

// AlertFromEntity renders an alert row.
func AlertFromEntity(e *entities.Alert) *Alert {
	active := e.Active
	a := &Alert{
		Auditable:          AuditableFrom(&e.BaseEntity),
		Name:               e.Name,
		Description:        e.Description,
		Cron:               e.Cron,
		LastTimestamp:      e.LastTimestamp,
		Active:             &active,
		Owner:              e.Owner,
		TemplateProperties: plainMap(e.TemplateProperties),
	}
	if e.Template != "" {
		a.Template = &TemplateRef{Name: e.Template}
	}
	return a
}

// ToSubscriptionGroupEntity maps a group representation to a row. The
// association cursor fields are carried over verbatim; the subscription
// policy overwrites them.
func ToSubscriptionGroupEntity(g *SubscriptionGroup) *entities.SubscriptionGroup {
	e := &entities.SubscriptionGroup{
		BaseEntity: baseFrom(g.Auditable),
		Name:       g.Name,
		Cron:       g.Cron,
		Active:     boolOr(g.Active, true),
		Properties: jsonMap(g.Properties),
	}
	if g.Specs != nil {
		specs := make(datatypes.JSONSlice[entities.NotificationSpec], 0, len(g.Specs))
		for _, s := range g.Specs {
			specs = append(specs, entities.NotificationSpec{Type: s.Type, Params: maps.Clone(s.Params)})
		}
		e.NotificationSpecs = specs
	}
	if g.AlertAssociations != nil {
		assocs := make(datatypes.JSONSlice[entities.AlertAssociation], 0, len(g.AlertAssociations))
		for _, a := range g.AlertAssociations {
			assoc := entities.AlertAssociation{AnomalyCompletionWatermark: a.AnomalyCompletionWatermark}
			if a.Alert != nil {
				assoc.AlertID = a.Alert.ID
			}
			if a.EnumerationItem != nil {
				id := a.EnumerationItem.ID
				assoc.EnumerationItemID = &id
			}
			if a.Created != nil {
				assoc.CreateTime = *a.Created
			}
			assocs = append(assocs, assoc)
		}
		e.AlertAssociations = assocs
	}
	return e
}

// SubscriptionGroupFromEntity renders a group row.
func SubscriptionGroupFromEntity(e *entities.SubscriptionGroup) *SubscriptionGroup {
	active := e.Active
	g := &SubscriptionGroup{
		Auditable:  AuditableFrom(&e.BaseEntity),
		Name:       e.Name,
		Cron:       e.Cron,
		Active:     &active,
		Properties: plainMap(e.Properties),
	}
	for _, s := range e.NotificationSpecs {
		g.Specs = append(g.Specs, NotificationSpec{Type: s.Type, Params: maps.Clone(s.Params)})
	}
	for _, a := range e.AlertAssociations {
		out := AlertAssociation{
			Alert:                      NewRef(a.AlertID),
			Created:                    timePtr(a.CreateTime),
			AnomalyCompletionWatermark: a.AnomalyCompletionWatermark,
		}
		if a.EnumerationItemID != nil {
			out.EnumerationItem = NewRef(*a.EnumerationItemID)
		}
		g.AlertAssociations = append(g.AlertAssociations, out)
	}
	return g
}

// ToEnumerationItemEntity maps an enumeration item representation to a row.
func ToEnumerationItemEntity(i *EnumerationItem) *entities.EnumerationItem {
	e := &entities.EnumerationItem{
		BaseEntity: baseFrom(i.Auditable),
		Name:       i.Name,
		Params:     jsonMap(i.Params),
	}
	if i.Alert != nil {
		e.AlertID = i.Alert.ID
	}
	return e
}

// EnumerationItemFromEntity renders an enumeration item row.
func EnumerationItemFromEntity(e *entities.EnumerationItem) *EnumerationItem {
	return &EnumerationItem{
		Auditable: AuditableFrom(&e.BaseEntity),
		Alert:     NewRef(e.AlertID),
		Name:      e.Name,
		Params:    plainMap(e.Params),
	}
}

// ToAnomalyEntity maps an anomaly representation to a row.
func ToAnomalyEntity(a *Anomaly) *entities.Anomaly {
	e := &entities.Anomaly{
		BaseEntity:     baseFrom(a.Auditable),
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Metric:         a.Metric,
		AvgCurrentVal:  a.AvgCurrentVal,
		AvgBaselineVal: a.AvgBaselineVal,
		IsChild:        a.IsChild,
		Feedback:       entities.AnomalyFeedbackType(a.Feedback),
	}
	if a.Alert != nil {
		e.AlertID = a.Alert.ID
	}
	if a.EnumerationItem != nil {
		id := a.EnumerationItem.ID
		e.EnumerationItemID = &id
	}
	return e
}

// AnomalyFromEntity renders an anomaly row.
func AnomalyFromEntity(e *entities.Anomaly) *Anomaly {
	a := &Anomaly{
		Auditable:      AuditableFrom(&e.BaseEntity),
		Alert:          NewRef(e.AlertID),
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		Metric:         e.Metric,
		AvgCurrentVal:  e.AvgCurrentVal,
		AvgBaselineVal: e.AvgBaselineVal,
		IsChild:        e.IsChild,
		Feedback:       string(e.Feedback),
	}
	if e.EnumerationItemID != nil {
		a.EnumerationItem = NewRef(*e.EnumerationItemID)
	}
	return a
}

// TaskFromEntity renders a task row.
func TaskFromEntity(e *entities.Task) *Task {
	return &Task{
		Auditable: AuditableFrom(&e.BaseEntity),
		RefID:     e.RefID,
		Type:      string(e.Type),
		Status:    string(e.Status),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
	}
}
