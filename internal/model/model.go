// Package model holds the externally exposed representations of entities and
// their mapping to and from persisted rows. Fields owned by the system (ids,
// audit columns, watermarks) are rendered on output and ignored on input.
package model

import "time"

// Resource is implemented by every external representation.
type Resource interface {
	GetID() *uint
}

// Auditable carries identity and audit fields.
type Auditable struct {
	ID        *uint      `json:"id,omitempty"`
	Namespace string     `json:"namespace,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	Created   *time.Time `json:"created,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	Updated   *time.Time `json:"updated,omitempty"`
}

// GetID returns the id, nil before creation.
func (a *Auditable) GetID() *uint {
	return a.ID
}

// Ref references another entity by id.
type Ref struct {
	ID uint `json:"id" validate:"required"`
}

// NewRef returns a reference to id.
func NewRef(id uint) *Ref {
	return &Ref{ID: id}
}

// TemplateRef names an alert template.
type TemplateRef struct {
	Name string `json:"name"`
}

// Alert is the external representation of an alert.
type Alert struct {
	Auditable
	Name               string         `json:"name" validate:"required,max=255"`
	Description        string         `json:"description,omitempty" validate:"max=1000"`
	Cron               string         `json:"cron,omitempty" validate:"max=100"`
	LastTimestamp      int64          `json:"lastTimestamp,omitempty"`
	Active             *bool          `json:"active,omitempty"`
	Owner              string         `json:"owner,omitempty"`
	Template           *TemplateRef   `json:"template,omitempty"`
	TemplateProperties map[string]any `json:"templateProperties,omitempty"`
}

// NotificationSpec describes a notification channel.
type NotificationSpec struct {
	Type   string         `json:"type" validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// AlertAssociation links a subscription group to an alert or to one of its
// enumeration items. Created and AnomalyCompletionWatermark are read-only.
type AlertAssociation struct {
	Alert                      *Ref       `json:"alert" validate:"required"`
	EnumerationItem            *Ref       `json:"enumerationItem,omitempty"`
	Created                    *time.Time `json:"created,omitempty"`
	AnomalyCompletionWatermark *time.Time `json:"anomalyCompletionWatermark,omitempty"`
}

// SubscriptionGroup is the external representation of a subscription group.
type SubscriptionGroup struct {
	Auditable
	Name              string             `json:"name" validate:"required,max=255"`
	Cron              string             `json:"cron,omitempty" validate:"max=100"`
	Active            *bool              `json:"active,omitempty"`
	Specs             []NotificationSpec `json:"specs,omitempty" validate:"dive"`
	AlertAssociations []AlertAssociation `json:"alertAssociations,omitempty" validate:"dive"`
	Properties        map[string]any     `json:"properties,omitempty"`
}

// EnumerationItem is the external representation of an enumeration item.
type EnumerationItem struct {
	Auditable
	Alert  *Ref           `json:"alert" validate:"required"`
	Name   string         `json:"name" validate:"required,max=255"`
	Params map[string]any `json:"params,omitempty"`
}

// Anomaly is the external representation of an anomaly.
type Anomaly struct {
	Auditable
	Alert           *Ref    `json:"alert" validate:"required"`
	EnumerationItem *Ref    `json:"enumerationItem,omitempty"`
	StartTime       int64   `json:"startTime"`
	EndTime         int64   `json:"endTime" validate:"gtefield=StartTime"`
	Metric          string  `json:"metric,omitempty"`
	AvgCurrentVal   float64 `json:"avgCurrentVal"`
	AvgBaselineVal  float64 `json:"avgBaselineVal"`
	IsChild         bool    `json:"isChild"`
	Feedback        string  `json:"feedback,omitempty" validate:"omitempty,oneof=ANOMALY ANOMALY_EXPECTED ANOMALY_NEW_TREND NOT_ANOMALY NO_FEEDBACK"`
}

// Task is the read-only representation of scheduled work.
type Task struct {
	Auditable
	RefID     uint   `json:"refId"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// AlertEvaluation is both the request and the result of an evaluation. Start
// and End are epoch millis; a nil End means "now".
type AlertEvaluation struct {
	Alert                *Alert                         `json:"alert" validate:"required"`
	Start                int64                          `json:"start"`
	End                  *int64                         `json:"end,omitempty"`
	DetectionEvaluations map[string]DetectionEvaluation `json:"detectionEvaluations,omitempty"`
}

// DetectionEvaluation is the output of one detection node, optionally scoped
// to an enumeration item.
type DetectionEvaluation struct {
	EnumerationItem *EnumerationItem `json:"enumerationItem,omitempty"`
	Anomalies       []Anomaly        `json:"anomalies,omitempty"`
	Stats           map[string]any   `json:"stats,omitempty"`
}

// AlertInsightsRequest asks for the insights of an alert that is not saved.
type AlertInsightsRequest struct {
	Alert *Alert `json:"alert" validate:"required"`
}

// AnomalyStats summarises the parent anomalies of an alert and the feedback
// recorded on them. FeedbackStats has an entry for every feedback type.
type AnomalyStats struct {
	TotalCount        int64            `json:"totalCount"`
	CountWithFeedback int64            `json:"countWithFeedback"`
	FeedbackStats     map[string]int64 `json:"feedbackStats"`
}

// AlertInsights describes the data available to an alert.
type AlertInsights struct {
	DatasetStartTime *int64 `json:"datasetStartTime,omitempty"`
	DatasetEndTime   *int64 `json:"datasetEndTime,omitempty"`
	DefaultStartTime int64  `json:"defaultStartTime"`
	DefaultEndTime   int64  `json:"defaultEndTime"`
}
