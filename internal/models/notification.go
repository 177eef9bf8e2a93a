package models

import "time"

const NotificationTypeAnswer = "answer"

type Notification struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"index;not null" json:"user_id"` // recipient
	Type      string    `gorm:"size:32;not null" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Link      string    `gorm:"size:255" json:"link"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
