package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/service"
)

type registerRequest struct {
	NewUser   string `json:"new_user" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type userResponse struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Role       string     `json:"role"`
	Status     string     `json:"status"`
	Bio        string     `json:"bio,omitempty"`
	AvatarURL  *string    `json:"avatar_url,omitempty"`
	JoinedDate time.Time  `json:"joined_date"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       string(u.Role),
		Status:     string(u.Status),
		Bio:        u.Bio,
		AvatarURL:  u.AvatarURL,
		JoinedDate: u.JoinedDate,
		LastLogin:  u.LastLogin,
	}
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, service.ErrBadRequest)
		return
	}

	firstName, lastName := req.FirstName, req.LastName
	if firstName == "" && lastName == "" {
		firstName, lastName = splitDisplayName(req.NewUser)
	}

	result, err := h.auth.Register(c.Request.Context(), models.NewUser{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setAccessCookie(c, result.AccessToken)
	h.setRefreshCookie(c, result.RefreshToken)

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    newUserResponse(result.User),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, service.ErrBadRequest)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setAccessCookie(c, result.AccessToken)
	h.setRefreshCookie(c, result.RefreshToken)

	c.JSON(http.StatusOK, gin.H{
		"message":      "User logged in successfully",
		"user":         newUserResponse(result.User),
		"token":        result.AccessToken,
		"refreshtoken": result.RefreshToken,
	})
}

func (h HandlerSet) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(RefreshCookie)
	if err != nil || refreshToken == "" {
		h.respondError(c, service.ErrNoRefreshToken)
		return
	}

	result, err := h.auth.RefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setAccessCookie(c, result.AccessToken)

	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed successfully",
		"id":      result.UserID,
		"role":    result.Role,
	})
}

// Logout clears the session cookies before the outcome is known, so a failed
// store update still ends the client session.
func (h HandlerSet) Logout(c *gin.Context) {
	token, cookieErr := c.Cookie(AccessCookie)
	h.clearSessionCookies(c)

	if cookieErr != nil || token == "" {
		h.respondError(c, service.ErrNoToken)
		return
	}

	if err := h.auth.LogoutWithToken(c.Request.Context(), token); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		h.respondError(c, service.ErrUnauthorized)
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": newUserResponse(user),
	})
}

func splitDisplayName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
