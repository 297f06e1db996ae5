package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while a submission is in flight.
func Health(orch *orchestrator.Orchestrator, serviceURL, version string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := orch.State()

		status := "healthy"
		if state == models.StateSubmitting {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			State:      state,
			ServiceURL: serviceURL,
			Version:    version,
		})
	}
}
