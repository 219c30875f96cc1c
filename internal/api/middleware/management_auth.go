// Package middleware provides HTTP middleware components for the relay API.
// This file guards the management endpoints with a shared password.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sparkmatch/chatrelay/internal/config"
)

// ManagementAuth authenticates management requests. A bcrypt hash takes
// precedence over the plaintext password; with neither configured, all
// management access is refused.
func ManagementAuth(cfg config.ManagementConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := suppliedPassword(c)

		switch {
		case cfg.PasswordHash != "":
			if supplied == "" || bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(supplied)) != nil {
				unauthorized(c)
				return
			}
		case cfg.Password != "":
			if subtle.ConstantTimeCompare([]byte(cfg.Password), []byte(supplied)) != 1 {
				unauthorized(c)
				return
			}
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "management access is not configured"})
			return
		}

		c.Next()
	}
}

func suppliedPassword(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.GetHeader("X-Management-Key")
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management credentials"})
}
