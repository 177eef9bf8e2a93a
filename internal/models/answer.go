package models

import "time"

type Answer struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	QuestionID int       `gorm:"index;not null" json:"question_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	AuthorID   int       `gorm:"index;not null" json:"author_id"`
	Author     string    `gorm:"size:100" json:"author"`
	IsAccepted bool      `gorm:"not null;default:false" json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AnswerView is an answer as seen by one viewer: its tally and the viewer's own vote.
type AnswerView struct {
	Answer
	Votes    int `json:"votes"`
	UserVote int `json:"user_vote"`
}

type CreateAnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

type AcceptAnswerRequest struct {
	AnswerID int `json:"answer_id" binding:"required"`
}
