// Package auth guards the admin command routes with a shared bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrMissingToken = errors.New("auth: missing bearer token")
)

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// FromToken returns a StaticToken validator, or nil when token is empty
// (commands are then open).
func FromToken(token string) Validator {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return StaticToken{Token: token}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Require rejects requests whose bearer token fails v. A nil v allows all.
func Require(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			err = v.Validate(token)
		}
		if err != nil {
			log.Warn().Str("path", c.FullPath()).Str("client_ip", c.ClientIP()).Err(err).Msg("auth.Require rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}
