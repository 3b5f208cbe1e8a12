package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/marcador/backend/internal/bookmarks"
	"github.com/gin-gonic/gin"
)

type tagRequestPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleListTags(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	tags, err := h.tags.List(c.Request.Context(), userID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	payload := make([]tagViewPayload, 0, len(tags))
	for _, tag := range tags {
		payload = append(payload, tagViewPayload{ID: tag.ID, Name: tag.Name})
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleCreateTag(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	var request tagRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	tag, err := h.tags.Resolve(c.Request.Context(), userID, request.Name)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tagViewPayload{ID: tag.ID, Name: tag.Name})
}

func (h *httpHandler) handleRenameTag(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	tagID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	var request tagRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	tag, err := h.tags.Rename(c.Request.Context(), userID, tagID, request.Name)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagViewPayload{ID: tag.ID, Name: tag.Name})
}

func (h *httpHandler) handleDeleteTag(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	tagID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	if err := h.tags.Delete(c.Request.Context(), userID, tagID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": tagID.String()})
}
