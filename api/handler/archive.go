package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/saver"
)

// Download returns a handler for GET /api/v1/download.
//
// It streams the held archive as an attachment and releases it once the
// body has been written. A failed write keeps the archive for another try.
func Download(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := orch.HandOff(func(h *orchestrator.Handle) error {
			name := saver.SafeName(h.Filename())
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
			c.Header("Content-Type", "application/zip")
			c.Header("Content-Length", strconv.Itoa(h.Size()))
			c.Status(http.StatusOK)
			_, err := h.WriteTo(c.Writer)
			return err
		})

		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrNoArchive), errors.Is(err, orchestrator.ErrRevoked):
			// Revoked before any byte was written: drop the attachment headers.
			for _, k := range []string{"Content-Disposition", "Content-Type", "Content-Length"} {
				c.Writer.Header().Del(k)
			}
			c.JSON(http.StatusNotFound, models.SubmitResponse{
				Success: false,
				State:   orch.State(),
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNoArchive,
					Message: "no archive is available for download",
				},
			})
		default:
			// Headers are already sent; the client sees a truncated body.
			slog.Warn("archive download interrupted", "error", err)
		}
	}
}

// Revoke returns a handler for DELETE /api/v1/archive.
func Revoke(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		orch.Revoke()
		c.Status(http.StatusNoContent)
	}
}
