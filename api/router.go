package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitegrab/api/handler"
	"github.com/use-agent/sitegrab/api/middleware"
	"github.com/use-agent/sitegrab/config"
	"github.com/use-agent/sitegrab/session"
)

// NewRouter creates a configured Gin engine with all console routes.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Submit:  RateLimit
func NewRouter(sess *session.Session, cfg *config.Config, version string, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Console.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(sess.Orch, cfg.Service.URL, version, startTime))
	v1.POST("/submit", middleware.RateLimit(cfg.RateLimit), handler.Submit(sess))
	v1.GET("/state", handler.State(sess.Orch))
	v1.GET("/download", handler.Download(sess.Orch))
	v1.DELETE("/archive", handler.Revoke(sess.Orch))
	v1.GET("/history", handler.History(sess.History))

	return r
}
