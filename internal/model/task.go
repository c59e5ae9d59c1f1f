package model

import "time"

// Task represents a single todo item.
type Task struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Text          string     `gorm:"not null" json:"text"`
	Completed     bool       `gorm:"default:false" json:"completed"`
	Category      Category   `gorm:"index;size:16" json:"category,omitempty"`
	Priority      Priority   `gorm:"size:8" json:"priority,omitempty"`
	OwnerID       *uint      `gorm:"index" json:"ownerId"`
	ScheduledDate *time.Time `gorm:"index" json:"scheduledDate,omitempty"`
	ScheduledTime string     `json:"scheduledTime,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TaskPatch carries a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Text          *string
	Completed     *bool
	Category      *Category
	Priority      *Priority
	ScheduledDate *time.Time
	ScheduledTime *string
	// Unschedule clears both calendar fields and wins over ScheduledDate/ScheduledTime.
	Unschedule bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Text == nil && p.Completed == nil && p.Category == nil && p.Priority == nil &&
		p.ScheduledDate == nil && p.ScheduledTime == nil && !p.Unschedule
}

// Day maps t to its calendar day, stored as UTC midnight of t's own Y-M-D.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
