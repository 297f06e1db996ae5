package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitegrab/history"
	"github.com/use-agent/sitegrab/models"
)

// History returns a handler for GET /api/v1/history.
func History(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries := []models.HistoryEntry{}
		if store != nil {
			entries = append(entries, store.List()...)
		}
		c.JSON(http.StatusOK, models.HistoryResponse{Entries: entries})
	}
}
