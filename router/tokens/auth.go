package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/gbrlsnchs/jwt/v3"

	"github.com/andr3so7/folio/config"
	"github.com/andr3so7/folio/internal/models"
)

// ErrInvalidToken is returned for tokens that fail signature or expiry
// validation.
var ErrInvalidToken = errors.New("tokens: invalid or expired token")

// AuthPayload is the claim set embedded in access tokens issued to the
// admin user.
type AuthPayload struct {
	jwt.Payload
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Generate signs a new access token for the given user using the key held
// by the configuration.
func Generate(u *models.User, lifetime time.Duration) (string, error) {
	now := time.Now()
	p := AuthPayload{
		Payload: jwt.Payload{
			Issuer:         config.Get().AppName,
			Subject:        strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:       jwt.NumericDate(now),
			ExpirationTime: jwt.NumericDate(now.Add(lifetime)),
		},
		UserID: strconv.FormatUint(uint64(u.ID), 10),
		Email:  u.Email,
		Role:   u.Role,
		Name:   u.Name,
		Avatar: u.Avatar,
	}

	token, err := jwt.Sign(p, config.GetJwtAlgorithm())
	if err != nil {
		return "", errors.Wrap(err, "tokens: failed to sign access token")
	}
	return string(token), nil
}

// Parse verifies a raw access token's signature and expiry and returns its
// claims.
func Parse(raw string) (*AuthPayload, error) {
	var p AuthPayload
	validate := jwt.ValidatePayload(&p.Payload, jwt.ExpirationTimeValidator(time.Now()))
	if _, err := jwt.Verify([]byte(raw), config.GetJwtAlgorithm(), &p, validate); err != nil {
		return nil, ErrInvalidToken
	}
	return &p, nil
}

// NewRefreshToken produces the opaque long-lived token stored against a
// user record and exchanged for fresh access tokens.
func NewRefreshToken() (string, error) {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "tokens: failed to generate refresh token")
	}
	return hex.EncodeToString(buf), nil
}
