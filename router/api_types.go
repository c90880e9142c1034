package router

import (
	"github.com/andr3so7/folio/internal/cron"
	"github.com/andr3so7/folio/internal/models"
	"github.com/andr3so7/folio/system"
)

// ModuleListResponse is returned by GET /modules.
type ModuleListResponse struct {
	Status string          `json:"status"`
	Data   []models.Module `json:"data"`
	Cached bool            `json:"cached"`
	// ResponseTime is the server-side handling time in milliseconds.
	ResponseTime int64 `json:"responseTime"`
}

// ModuleToggleRequest is the body of POST /modules/toggle.
type ModuleToggleRequest struct {
	ModuleName string `json:"moduleName" binding:"required"`
}

// ModuleToggleResponse carries the post-toggle record.
type ModuleToggleResponse struct {
	Status string         `json:"status"`
	Data   *models.Module `json:"data"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRequest is the body of POST /auth/refresh-token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse carries the freshly issued access token.
type RefreshTokenResponse struct {
	Token string `json:"token"`
}

// ContactRequest is the body of POST /contact. Field bounds mirror the
// frontend form validation.
type ContactRequest struct {
	Name    string `json:"name" binding:"required,min=2"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required,min=10"`
}

// MessageResponse is a generic success body.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Memory    system.Memory    `json:"memory"`
	Jobs      []cron.JobStatus `json:"jobs"`
}

// PingResponse is returned by GET /ping.
type PingResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}
