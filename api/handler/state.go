package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
)

// State returns a handler for GET /api/v1/state.
func State(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := orch.Snapshot()
		resp := models.StateResponse{
			State: snap.State,
			Token: snap.Token,
		}
		if d := snap.Outcome.Download; d != nil {
			resp.Filename = d.Filename
			resp.Size = d.Handle.Size()
		}
		if f := snap.Outcome.Failure; f != nil {
			resp.Error = f.ToDetail()
		}
		c.JSON(http.StatusOK, resp)
	}
}
