package models

import "time"

type Question struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:300;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Tags        []string  `gorm:"type:text;serializer:json" json:"tags"`
	AuthorID    int       `gorm:"index;not null" json:"author_id"`
	Author      string    `gorm:"size:100" json:"author"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QuestionSummary is a question enriched with the aggregates shown in listings.
type QuestionSummary struct {
	Question
	Answers     int  `json:"answers"`
	Votes       int  `json:"votes"`
	HasAccepted bool `json:"has_accepted"`
}

type CreateQuestionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// QuestionDetail is a question page: the question with its answers as seen by
// one viewer.
type QuestionDetail struct {
	QuestionSummary
	AnswerViews []AnswerView `json:"answer_list"`
}
