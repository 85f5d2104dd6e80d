package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homeworth/server/config"
)

// ListStates returns the states census context data is available for
func (h *Handler) ListStates(c *gin.Context) {
	c.JSON(http.StatusOK, config.SupportedStates)
}

// GetState returns a single state by code or name
func (h *Handler) GetState(c *gin.Context) {
	state := config.GetStateByCode(c.Param("code"))
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "State not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}
