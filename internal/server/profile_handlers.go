package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/marcador/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/marcador/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type profilePayload struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PageCount   int64  `json:"page_count"`
}

type profileUpdatePayload struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	account, err := h.users.GetAccount(c.Request.Context(), userID.String())
	if err != nil {
		h.respondProfileError(c, err)
		return
	}
	h.respondProfile(c, userID, account)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	var request profileUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.users.UpdateProfile(c.Request.Context(), userID.String(), users.ProfileUpdate{
		Email:       request.Email,
		DisplayName: request.DisplayName,
	})
	if err != nil {
		h.respondProfileError(c, err)
		return
	}
	h.respondProfile(c, userID, account)
}

func (h *httpHandler) respondProfile(c *gin.Context, userID bookmarks.UserID, account users.Account) {
	count, err := h.queries.Count(c.Request.Context(), userID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, profilePayload{
		Email:       account.Email,
		DisplayName: account.DisplayName,
		PageCount:   count,
	})
}

func (h *httpHandler) respondProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, users.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
	default:
		h.logger.Error("profile request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
