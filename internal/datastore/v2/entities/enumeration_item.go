package entities

import "gorm.io/datatypes"

// EnumerationItem is one enumerated sub-dimension of an alert. Items are
// immutable once created.
type EnumerationItem struct {
	BaseEntity
	AlertID uint              `gorm:"not null;index" json:"alert_id"`
	Name    string            `gorm:"size:255;not null" json:"name"`
	Params  datatypes.JSONMap `json:"params"`
}

// TableName returns the table name for GORM.
func (EnumerationItem) TableName() string {
	return "enumeration_items"
}

// ResourceType implements Entity.
func (EnumerationItem) ResourceType() string {
	return ResourceEnumerationItem
}
