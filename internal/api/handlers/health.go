package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness and the loaded vocabulary
type HealthHandler struct {
	vocabSize      int
	historyEnabled bool
}

func NewHealthHandler(vocabSize int, historyEnabled bool) *HealthHandler {
	return &HealthHandler{vocabSize: vocabSize, historyEnabled: historyEnabled}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	historyStatus := "disabled"
	if h.historyEnabled {
		historyStatus = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"vocabulary": gin.H{
			"size": h.vocabSize,
		},
		"history": gin.H{
			"status": historyStatus,
		},
	})
}
