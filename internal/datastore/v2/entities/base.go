package entities

import "time"

// Resource types used by access control and events.
const (
	ResourceAlert             = "alert"
	ResourceSubscriptionGroup = "subscription_group"
	ResourceEnumerationItem   = "enumeration_item"
	ResourceAnomaly           = "anomaly"
	ResourceTask              = "task"
)

// BaseEntity carries the identity, tenant and audit columns shared by every
// persisted entity. Namespace is assigned once at creation and never changes.
type BaseEntity struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Namespace  string    `gorm:"size:255;not null;default:'';index" json:"namespace"`
	CreatedBy  string    `gorm:"size:255;not null;default:''" json:"created_by"`
	CreateTime time.Time `gorm:"not null" json:"create_time"`
	UpdatedBy  string    `gorm:"size:255;not null;default:''" json:"updated_by"`
	UpdateTime time.Time `gorm:"not null" json:"update_time"`
}

// Base returns the embedded base entity.
func (b *BaseEntity) Base() *BaseEntity {
	return b
}

// Entity is implemented by every persisted entity.
type Entity interface {
	Base() *BaseEntity
	ResourceType() string
}

// Record constrains a generic type parameter to a pointer to an entity struct.
type Record[T any] interface {
	*T
	Entity
}

// All returns one zero value of every entity, in migration order.
func All() []any {
	return []any{
		&Alert{},
		&EnumerationItem{},
		&Anomaly{},
		&SubscriptionGroup{},
		&Task{},
	}
}
