package model

import "time"

// LinkCode is a one-time code that binds a Telegram chat to a user.
type LinkCode struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:16;uniqueIndex;not null"`
	UserID    uint   `gorm:"not null;index"`
	Owner     *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (c LinkCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
