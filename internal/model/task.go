package model

import "time"

// Task represents a single item owned by one user.
type Task struct {
	ID          uint     `gorm:"primaryKey"`
	UserID      uint     `gorm:"not null;index"`
	Owner       *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Title       string   `gorm:"size:200;not null"`
	Description string   `gorm:"type:text;not null"`
	Completed   bool     `gorm:"not null;default:false"`
	Priority    Priority `gorm:"size:20;not null;default:medium;check:chk_tasks_priority,priority IN ('low','medium','high')"`
	Category    string   `gorm:"size:50;not null;default:general"`
	DueDate     *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarkComplete flips the task to done and stamps the completion time.
func (t *Task) MarkComplete(now time.Time) {
	t.Completed = true
	t.CompletedAt = &now
}

// MarkIncomplete reopens the task; CompletedAt is cleared with it.
func (t *Task) MarkIncomplete() {
	t.Completed = false
	t.CompletedAt = nil
}

// Toggle switches the completion state and returns the new value.
func (t *Task) Toggle(now time.Time) bool {
	if t.Completed {
		t.MarkIncomplete()
	} else {
		t.MarkComplete(now)
	}
	return t.Completed
}

// Overdue reports whether the due date has passed on an open task.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed {
		return false
	}
	return now.After(*t.DueDate)
}

// DueSoon reports an open task due within the given window.
func (t Task) DueSoon(now time.Time, window time.Duration) bool {
	if t.DueDate == nil || t.Completed || t.Overdue(now) {
		return false
	}
	return t.DueDate.Sub(now) <= window
}
