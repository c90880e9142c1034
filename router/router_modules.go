package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/router/middleware"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		allowed := config.Get().Api.AllowedOrigins
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	},
}

// getModules returns the current state of every module, served from the
// read cache when it is still fresh.
func getModules(c *gin.Context) {
	start := time.Now()

	snap, err := middleware.ExtractModuleService(c).GetAll(c.Request.Context())
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	c.JSON(http.StatusOK, ModuleListResponse{
		Status:       "success",
		Data:         snap.Data,
		Cached:       snap.Cached,
		ResponseTime: time.Since(start).Milliseconds(),
	})
}

// postModuleToggle atomically flips a module's active and blocked flags on
// behalf of the authenticated actor and broadcasts the change.
func postModuleToggle(c *gin.Context) {
	var data ModuleToggleRequest
	if err := c.ShouldBindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, middleware.ErrorResponse{
			Status:    "error",
			Message:   "A moduleName value must be provided in the request body.",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	actor := middleware.ExtractActor(c)
	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}

	m, err := middleware.ExtractModuleService(c).Toggle(c.Request.Context(), data.ModuleName, actorID)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	c.JSON(http.StatusOK, ModuleToggleResponse{Status: "success", Data: m})
}

// getModulesWebsocket upgrades the connection and registers it with the
// broadcast hub. The client's first frame is always the full module status
// snapshot as of connection time.
func getModulesWebsocket(c *gin.Context) {
	snapshot, err := middleware.ExtractModuleService(c).StatusMap(c.Request.Context())
	if err != nil {
		// Mirror publish semantics: the subscriber still connects, it just
		// starts from an empty snapshot until the next event.
		middleware.ExtractLogger(c).WithError(err).Error("failed to compute module snapshot for new subscriber")
		snapshot = map[string]bool{}
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		middleware.ExtractLogger(c).WithError(err).Debug("failed to upgrade websocket connection")
		return
	}

	middleware.ExtractHub(c).Subscribe(conn, snapshot)
}
