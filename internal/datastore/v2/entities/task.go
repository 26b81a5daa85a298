package entities

// TaskType is the kind of work a task represents.
type TaskType string

const (
	TaskTypeDetection    TaskType = "DETECTION"
	TaskTypeNotification TaskType = "NOTIFICATION"
)

// TaskStatus is the execution state, owned by the external workers.
type TaskStatus string

const (
	TaskStatusWaiting TaskStatus = "WAITING"
)

// Task is a unit of scheduled work over the window [StartTime, EndTime), in
// epoch millis. RefID is the subject entity id.
type Task struct {
	BaseEntity
	RefID     uint       `gorm:"not null;index" json:"ref_id"`
	Type      TaskType   `gorm:"size:20;not null;index" json:"type"`
	Status    TaskStatus `gorm:"size:20;not null;default:'WAITING'" json:"status"`
	StartTime int64      `gorm:"not null" json:"start_time"`
	EndTime   int64      `gorm:"not null" json:"end_time"`
}

// TableName returns the table name for GORM.
func (Task) TableName() string {
	return "tasks"
}

// ResourceType implements Entity.
func (Task) ResourceType() string {
	return ResourceTask
}
