package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andr3so7/folio/router/middleware"
)

// postContact validates a contact-form submission and forwards it to the
// email provider. The endpoint is rate limited per client IP.
func postContact(c *gin.Context) {
	var data ContactRequest
	if err := c.ShouldBindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, middleware.ErrorResponse{
			Status:    "error",
			Message:   "The form is incomplete: a name (2+ characters), a valid email and a message (10+ characters) are required.",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	m := middleware.ExtractMailer(c)
	if err := m.SendContactEmail(c.Request.Context(), data.Name, data.Email, data.Message); err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Status: "success", Message: "Message sent successfully."})
}
