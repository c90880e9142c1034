package router

import (
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/andr3so7/folio/broadcast"
	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/cron"
	"github.com/andr3so7/folio/internal/mailer"
	"github.com/andr3so7/folio/modules"
	"github.com/andr3so7/folio/router/middleware"
)

const (
	contactRateWindow   = time.Minute
	contactRateCapacity = 3
)

// Configure configures the routing infrastructure for this daemon instance.
// Every shared handle (module service, broadcast hub, keep-alive scheduler,
// mailer) is constructed once at boot and injected here.
func Configure(svc *modules.Service, hub *broadcast.Hub, keepalive *cron.KeepAlive, mail mailer.Mailer) *gin.Engine {
	if config.Get().Environment != config.EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AttachRequestID(), middleware.CaptureErrors(), middleware.SetAccessControlHeaders())
	router.Use(middleware.AttachModuleService(svc), middleware.AttachHub(hub))
	router.Use(middleware.AttachKeepAlive(keepalive), middleware.AttachMailer(mail))
	router.Use(requestTiming())

	// Operational endpoints, public so the hosting provider and the
	// keep-alive self-ping can reach them without credentials.
	router.GET("/health", getHealth)
	router.GET("/ping", getPing)

	// The websocket sits outside the authorization group: frontend clients
	// observe module state without logging in, they just cannot change it.
	router.GET("/modules/ws", getModulesWebsocket)
	router.GET("/modules", getModules)

	router.POST("/contact", middleware.RateLimit(contactRateWindow, contactRateCapacity), postContact)

	auth := router.Group("/auth")
	{
		auth.POST("/login", postAuthLogin)
		auth.POST("/refresh-token", postAuthRefreshToken)
	}

	// State-changing module routes require a valid bearer token.
	protected := router.Group("")
	protected.Use(middleware.RequireAuthentication())
	protected.POST("/modules/toggle", postModuleToggle)

	return router
}

// requestTiming logs every request with its latency, escalating the level
// for slow responses so they stand out in production logs.
func requestTiming() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		entry := middleware.ExtractLogger(c).WithFields(log.Fields{
			"client_ip": c.ClientIP(),
			"status":    c.Writer.Status(),
			"latency":   latency,
		})

		msg := c.Request.Method + " " + c.Request.URL.Path
		switch {
		case latency > 3*time.Second:
			entry.Error("very slow request: " + msg)
		case latency > time.Second:
			entry.Warn("slow request: " + msg)
		default:
			entry.Debug(msg)
		}
	}
}
