package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"socialhub/internal/service"
)

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, service.ErrBadRequest)
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": newUserResponse(user),
	})
}
