package router

import (
	"net/http"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/database"
	"github.com/andr3so7/folio/internal/models"
	"github.com/andr3so7/folio/router/middleware"
	"github.com/andr3so7/folio/router/tokens"
)

// postAuthLogin authenticates the admin user by password and issues an
// access token plus a long-lived refresh token. Unknown users and wrong
// passwords produce the same response so the endpoint does not leak which
// accounts exist.
func postAuthLogin(c *gin.Context) {
	var data LoginRequest
	if err := c.ShouldBindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, middleware.ErrorResponse{
			Status:    "error",
			Message:   "Both an email and a password must be provided.",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	var user models.User
	err := database.Instance().Where("email = ?", data.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortInvalidCredentials(c)
			return
		}
		middleware.CaptureAndAbort(c, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(data.Password)) != nil {
		abortInvalidCredentials(c)
		return
	}

	// The refresh token is issued once and reused across logins until it
	// is rotated out of band.
	if user.RefreshToken == "" {
		rt, err := tokens.NewRefreshToken()
		if err != nil {
			middleware.CaptureAndAbort(c, err)
			return
		}
		user.RefreshToken = rt
		if err := database.Instance().Model(&user).Update("refresh_token", rt).Error; err != nil {
			middleware.CaptureAndAbort(c, err)
			return
		}
	}

	token, err := tokens.Generate(&user, config.Get().Auth.TokenDuration)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Status:       "success",
		Message:      "Logged in successfully.",
		Token:        token,
		RefreshToken: user.RefreshToken,
	})
}

// postAuthRefreshToken exchanges a stored refresh token for a fresh access
// token.
func postAuthRefreshToken(c *gin.Context) {
	var data RefreshTokenRequest
	if err := c.ShouldBindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, middleware.ErrorResponse{
			Status:    "error",
			Message:   "A refreshToken value must be provided in the request body.",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	var user models.User
	err := database.Instance().Where("refresh_token = ?", data.RefreshToken).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortInvalidCredentials(c)
			return
		}
		middleware.CaptureAndAbort(c, err)
		return
	}

	token, err := tokens.Generate(&user, config.Get().Auth.TokenDuration)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	c.JSON(http.StatusOK, RefreshTokenResponse{Token: token})
}

func abortInvalidCredentials(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, middleware.ErrorResponse{
		Status:    "error",
		Message:   "The provided credentials are not valid.",
		RequestID: c.GetString("request_id"),
	})
}
