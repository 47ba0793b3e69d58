package model

import "time"

// User is an account holder. Tasks reference it through Task.UserID.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:80;uniqueIndex;not null"`
	Email        string `gorm:"size:120;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	FirstName    string `gorm:"size:50;not null"`
	LastName     string `gorm:"size:50;not null"`
	TelegramID   *int64 `gorm:"uniqueIndex"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
