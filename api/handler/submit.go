package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/session"
)

// DownloadPath is the route that hands the held archive off.
const DownloadPath = "/api/v1/download"

// Submit returns a handler for POST /api/v1/submit.
//
// The call blocks until the scraping service answers. On success the archive
// stays held until GET /api/v1/download or DELETE /api/v1/archive.
func Submit(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SubmitResponse{
				Success: false,
				State:   sess.Orch.State(),
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		res := sess.Submit(c.Request.Context(), req.URL)
		out := res.Outcome
		timing := models.TimingInfo{TotalMs: res.Duration.Milliseconds()}

		if !out.Succeeded() {
			c.JSON(statusFor(out.Failure.Kind), models.SubmitResponse{
				Success: false,
				State:   sess.Orch.State(),
				Token:   out.Token,
				Timing:  timing,
				Error:   out.Failure.ToDetail(),
			})
			return
		}

		c.JSON(http.StatusOK, models.SubmitResponse{
			Success:        true,
			State:          models.StateSucceeded,
			Token:          out.Token,
			Filename:       out.Download.Filename,
			Size:           out.Download.Handle.Size(),
			DownloadURL:    DownloadPath,
			Preview:        session.Preview(res.Manifest),
			ContentChanged: res.ContentChanged,
			LayoutChanged:  res.LayoutChanged,
			Timing:         timing,
		})
	}
}

// statusFor translates failure kinds to HTTP status codes.
func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest // 400
	case models.KindServer, models.KindUnreadableServer:
		return http.StatusBadGateway // 502
	case models.KindConnection:
		return http.StatusServiceUnavailable // 503
	case models.KindSuperseded:
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError // 500
	}
}
