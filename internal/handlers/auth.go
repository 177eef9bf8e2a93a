package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type AuthHandler struct {
	accounts *auth.Accounts
}

func NewAuthHandler(accounts *auth.Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if !bindJSON(c, &input) {
		return
	}

	res, err := h.accounts.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if !bindJSON(c, &input) {
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetMe returns the signed-in user
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.accounts.Me(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
