package entities

import "gorm.io/datatypes"

// Alert is a monitored-entity configuration. LastTimestamp is the detection
// watermark in epoch millis: history before it has already been analyzed.
type Alert struct {
	BaseEntity
	Name               string            `gorm:"size:255;not null;index" json:"name"`
	Description        string            `gorm:"size:1000;default:''" json:"description"`
	Cron               string            `gorm:"size:100;not null" json:"cron"`
	LastTimestamp      int64             `gorm:"not null;default:0" json:"last_timestamp"`
	Active             bool              `gorm:"not null;index" json:"active"`
	Owner              string            `gorm:"size:255;default:''" json:"owner"`
	Template           string            `gorm:"size:255;default:''" json:"template"`
	TemplateProperties datatypes.JSONMap `json:"template_properties"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// ResourceType implements Entity.
func (Alert) ResourceType() string {
	return ResourceAlert
}

// Dataset returns the dataset name from the template properties, if any.
func (a *Alert) Dataset() string {
	if a.TemplateProperties == nil {
		return ""
	}
	if s, ok := a.TemplateProperties["dataset"].(string); ok {
		return s
	}
	return ""
}
