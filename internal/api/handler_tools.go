package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolshare-backend/internal/model"
)

type toolRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
	ImageURL    string `json:"imageUrl"`
}

func toolIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tool id"})
		return 0, false
	}
	return id, true
}

// ListTools returns all tools currently available for borrowing, most recent
// first.
func (h *Handler) ListTools(c *gin.Context) {
	tools, err := h.store.ListAvailableTools(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve tools"})
		return
	}
	c.JSON(http.StatusOK, tools)
}

// GetTool returns a single tool with its owner.
func (h *Handler) GetTool(c *gin.Context) {
	id, ok := toolIDParam(c)
	if !ok {
		return
	}
	tool, err := h.store.GetTool(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// CreateTool lists a new tool owned by the authenticated user.
func (h *Handler) CreateTool(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	tool := &model.Tool{
		OwnerID:      user.ID,
		Name:         req.Name,
		Category:     req.Category,
		Description:  req.Description,
		Condition:    req.Condition,
		ImageURL:     req.ImageURL,
		Availability: true,
	}
	if err := h.store.CreateTool(c.Request.Context(), tool); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tool"})
		return
	}
	c.JSON(http.StatusCreated, tool)
}

// UpdateTool lets the owner edit the tool's listing fields. Ownership and
// availability are not editable here.
func (h *Handler) UpdateTool(c *gin.Context) {
	id, ok := toolIDParam(c)
	if !ok {
		return
	}

	tool, err := h.store.GetTool(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if tool.OwnerID != currentUser(c).ID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized to update this tool"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Condition   string `json:"condition"`
		ImageURL    string `json:"imageUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		tool.Name = req.Name
	}
	if req.Category != "" {
		tool.Category = req.Category
	}
	if req.Description != "" {
		tool.Description = req.Description
	}
	if req.Condition != "" {
		tool.Condition = req.Condition
	}
	if req.ImageURL != "" {
		tool.ImageURL = req.ImageURL
	}

	if err := h.store.SaveTool(c.Request.Context(), tool); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update tool"})
		return
	}
	c.JSON(http.StatusOK, tool)
}

// DeleteTool removes a listing. Owner only.
func (h *Handler) DeleteTool(c *gin.Context) {
	id, ok := toolIDParam(c)
	if !ok {
		return
	}

	tool, err := h.store.GetTool(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if tool.OwnerID != currentUser(c).ID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized to delete this tool"})
		return
	}

	if err := h.store.DeleteTool(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete tool"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tool removed successfully"})
}
