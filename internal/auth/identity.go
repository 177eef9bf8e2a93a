// Package auth resolves who a caller is and what they may do: password
// hashing, JWT issue and parse, account registration and the authorization
// predicates the Q&A services consult.
package auth

import "github.com/emilythestrangee/stackit/backend/internal/models"

// Identity is an authenticated caller. A nil *Identity means anonymous.
type Identity struct {
	UserID   int
	Username string
	Email    string
	Role     models.Role
}

func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == models.RoleAdmin
}

// CanAcceptAnswer reports whether id may mark an answer of question as
// accepted. Only the question's author can; admins get no override.
func CanAcceptAnswer(id *Identity, question models.Question) bool {
	return id != nil && id.UserID == question.AuthorID
}

func CanDeleteQuestion(id *Identity, _ models.Question) bool {
	return id.IsAdmin()
}

func CanDeleteAnswer(id *Identity, answer models.Answer) bool {
	return id != nil && (id.IsAdmin() || id.UserID == answer.AuthorID)
}

func CanDeleteComment(id *Identity, comment models.Comment) bool {
	return id != nil && (id.IsAdmin() || id.UserID == comment.UserID)
}

func CanReadNotification(id *Identity, n models.Notification) bool {
	return id != nil && id.UserID == n.UserID
}

// IdentityOf builds the identity of a stored user.
func IdentityOf(user models.User) *Identity {
	return &Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     models.ParseRole(string(user.Role)),
	}
}
