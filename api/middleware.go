package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
)

type claims struct {
	jwt.RegisteredClaims
}

// jwtAuth requires a valid "Bearer <token>" Authorization header signed
// with the configured secret, and stores the subject as user_id for every
// handler downstream to read via c.GetString("user_id").
func (s *Server) jwtAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == "" || tokenStr == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		var cl claims
		token, err := jwt.ParseWithClaims(tokenStr, &cl, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid || cl.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("user_id", cl.Subject)
		c.Next()
	}
}

// totpStepUp gates strategy deletes and strategy starts (in any execution
// mode) behind an additional TOTP code when TOTPEnabled is on
// and the operator has an enrolled secret. No-op otherwise.
func (s *Server) totpStepUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.TOTPEnabled || s.cfg.OperatorTOTPKey == "" {
			c.Next()
			return
		}
		code := c.GetHeader("X-TOTP-Code")
		if code == "" || !totp.Validate(code, s.cfg.OperatorTOTPKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "valid totp code required"})
			return
		}
		c.Next()
	}
}
