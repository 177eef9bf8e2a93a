package models

import "time"

type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	AnswerID  int       `gorm:"index;not null" json:"answer_id"`
	UserID    int       `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
