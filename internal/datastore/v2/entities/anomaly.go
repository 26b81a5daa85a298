package entities

// AnomalyFeedbackType is the verdict a user recorded on an anomaly.
type AnomalyFeedbackType string

const (
	FeedbackAnomaly         AnomalyFeedbackType = "ANOMALY"
	FeedbackAnomalyExpected AnomalyFeedbackType = "ANOMALY_EXPECTED"
	FeedbackAnomalyNewTrend AnomalyFeedbackType = "ANOMALY_NEW_TREND"
	FeedbackNotAnomaly      AnomalyFeedbackType = "NOT_ANOMALY"
	FeedbackNone            AnomalyFeedbackType = "NO_FEEDBACK"
)

// AnomalyFeedbackTypes lists every feedback type in display order.
var AnomalyFeedbackTypes = []AnomalyFeedbackType{
	FeedbackAnomaly,
	FeedbackAnomalyExpected,
	FeedbackAnomalyNewTrend,
	FeedbackNotAnomaly,
	FeedbackNone,
}

// Anomaly is a detection result for an alert, optionally scoped to one of its
// enumeration items. Times are epoch millis.
type Anomaly struct {
	BaseEntity
	AlertID           uint    `gorm:"not null;index:idx_anomalies_alert_start,priority:1" json:"alert_id"`
	EnumerationItemID *uint   `gorm:"index" json:"enumeration_item_id,omitempty"`
	StartTime         int64   `gorm:"not null;index:idx_anomalies_alert_start,priority:2" json:"start_time"`
	EndTime           int64   `gorm:"not null" json:"end_time"`
	Metric            string  `gorm:"size:255;default:''" json:"metric"`
	AvgCurrentVal     float64 `json:"avg_current_val"`
	AvgBaselineVal    float64 `json:"avg_baseline_val"`
	IsChild           bool    `gorm:"not null;default:false" json:"is_child"`
	// Feedback is empty until a user records a verdict.
	Feedback AnomalyFeedbackType `gorm:"size:32;not null;default:''" json:"feedback,omitempty"`
}

// TableName returns the table name for GORM.
func (Anomaly) TableName() string {
	return "anomalies"
}

// ResourceType implements Entity.
func (Anomaly) ResourceType() string {
	return ResourceAnomaly
}
