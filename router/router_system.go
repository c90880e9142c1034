package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andr3so7/folio/router/middleware"
	"github.com/andr3so7/folio/system"
)

const pingTimeout = 2 * time.Second

// getHealth reports process health for uptime monitors. It answers 200 as
// long as the process serves requests; a failing keep-alive probe shows up
// in the jobs list but never fails this endpoint.
func getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    system.Uptime().String(),
		Version:   system.Version,
		Memory:    system.GetMemory(),
		Jobs:      middleware.ExtractKeepAlive(c).Jobs(),
	})
}

// getPing reports backing-store reachability using a short-deadline count.
// The response is always 200; clients read the database field.
func getPing(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	db := "connected"
	if _, err := middleware.ExtractModuleService(c).Count(ctx); err != nil {
		middleware.ExtractLogger(c).WithError(err).Warn("ping could not reach the database")
		db = "disconnected"
	}

	c.JSON(http.StatusOK, PingResponse{
		Status:    "pong",
		Database:  db,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
