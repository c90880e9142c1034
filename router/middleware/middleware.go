package middleware

import (
	"net/http"
	"strings"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andr3so7/folio/broadcast"
	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/cron"
	"github.com/andr3so7/folio/internal/mailer"
	"github.com/andr3so7/folio/modules"
	"github.com/andr3so7/folio/router/tokens"
)

// ErrorResponse is the structured failure body returned to clients. No
// stack traces or internal error objects leak through it.
type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// AttachRequestID generates a unique id for the request and attaches a
// logger scoped to it.
func AttachRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Set("logger", log.WithField("request_id", id))
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// CaptureErrors converts errors recorded on the context during request
// handling into a structured response for the caller.
func CaptureErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if err := c.Errors.Last(); err != nil && err.Err != nil {
			respondWithError(c, err.Err)
		}
	}
}

// CaptureAndAbort aborts the request and records the error against the
// context so CaptureErrors can emit the response.
func CaptureAndAbort(c *gin.Context, err error) {
	c.Abort()
	_ = c.Error(err)
}

// respondWithError maps internal errors onto client-safe status codes and
// messages. The full error is logged with request context; the client only
// sees a stable message.
func respondWithError(c *gin.Context, err error) {
	l := ExtractLogger(c).WithError(err)

	var status int
	var message string
	switch {
	case errors.Is(err, modules.ErrModuleNotFound):
		status, message = http.StatusNotFound, "The requested module does not exist."
	case errors.Is(err, modules.ErrUnauthenticated), errors.Is(err, tokens.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "You are not authorized to perform this action."
	case errors.Is(err, mailer.ErrDeliveryFailed):
		status, message = http.StatusInternalServerError, "The message could not be sent, please try again later."
	case errors.Is(err, modules.ErrQueryTimeout), errors.Is(err, modules.ErrStoreUnavailable):
		status, message = http.StatusInternalServerError, "The data store could not be reached, please try again later."
	default:
		status, message = http.StatusInternalServerError, "An unexpected error was encountered while processing this request."
	}

	if status >= http.StatusInternalServerError {
		l.Error("request failed")
	} else {
		l.Debug("request rejected")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:    "error",
		Message:   message,
		RequestID: c.GetString("request_id"),
	})
}

// SetAccessControlHeaders sets CORS headers for the configured frontend
// origins; an empty configuration allows any origin.
func SetAccessControlHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := config.Get().Api.AllowedOrigins

		if len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			for _, o := range allowed {
				if strings.EqualFold(o, origin) {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Header("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Origin")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireAuthentication validates the bearer token on the request and makes
// the actor's claims available to handlers. Requests without a valid token
// never reach the protected handler.
func RequireAuthentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Status:    "error",
				Message:   "A valid bearer token is required to access this endpoint.",
				RequestID: c.GetString("request_id"),
			})
			return
		}

		payload, err := tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Status:    "error",
				Message:   "The provided token is invalid or has expired.",
				RequestID: c.GetString("request_id"),
			})
			return
		}

		c.Set("actor", payload)
		c.Next()
	}
}

// AttachModuleService attaches the module service to the request context.
func AttachModuleService(s *modules.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("module_service", s)
		c.Next()
	}
}

// AttachHub attaches the realtime broadcast hub to the request context.
func AttachHub(h *broadcast.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("hub", h)
		c.Next()
	}
}

// AttachKeepAlive attaches the keep-alive scheduler handle.
func AttachKeepAlive(k *cron.KeepAlive) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("keepalive", k)
		c.Next()
	}
}

// AttachMailer attaches the outbound mailer.
func AttachMailer(m mailer.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("mailer", m)
		c.Next()
	}
}

// ExtractModuleService returns the module service attached to the request.
func ExtractModuleService(c *gin.Context) *modules.Service {
	return c.MustGet("module_service").(*modules.Service)
}

// ExtractHub returns the broadcast hub attached to the request.
func ExtractHub(c *gin.Context) *broadcast.Hub {
	return c.MustGet("hub").(*broadcast.Hub)
}

// ExtractKeepAlive returns the keep-alive handle attached to the request.
func ExtractKeepAlive(c *gin.Context) *cron.KeepAlive {
	return c.MustGet("keepalive").(*cron.KeepAlive)
}

// ExtractMailer returns the mailer attached to the request.
func ExtractMailer(c *gin.Context) mailer.Mailer {
	return c.MustGet("mailer").(mailer.Mailer)
}

// ExtractLogger returns the request-scoped logger, falling back to a plain
// entry when middleware did not run (tests).
func ExtractLogger(c *gin.Context) *log.Entry {
	if v, ok := c.Get("logger"); ok {
		return v.(*log.Entry)
	}
	return log.WithField("request_id", "")
}

// ExtractActor returns the authenticated actor's claims, or nil when the
// request was not authenticated.
func ExtractActor(c *gin.Context) *tokens.AuthPayload {
	if v, ok := c.Get("actor"); ok {
		return v.(*tokens.AuthPayload)
	}
	return nil
}
