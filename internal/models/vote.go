package models

import "time"

// Vote is one user's vote on one answer. A retracted vote has no row.
type Vote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"uniqueIndex:idx_votes_user_answer;not null" json:"user_id"`
	AnswerID  int       `gorm:"uniqueIndex:idx_votes_user_answer;index;not null" json:"answer_id"`
	Value     int       `gorm:"not null" json:"value"` // -1 or 1
	CreatedAt time.Time `json:"created_at"`
}

type VoteRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1"`
}

// VoteResult is what a cast vote returns to refresh the caller's view.
type VoteResult struct {
	AnswerID int `json:"answer_id"`
	UserVote int `json:"user_vote"`
	Votes    int `json:"votes"`
}
