package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"dev.manna.backend/internal/config"
)

// Keys under which RequireAuth stores the caller's identity on the gin context.
const (
	ContextUserID = "user_id"
	ContextToken  = "token"
)

// RequireAuth validates the Authorization bearer token and stores the
// authenticated user ID and the raw token on the request context. Tokens are
// HS256 JWTs verified against each configured key in turn; in debug mode a
// token that fails verification is still accepted if it carries a subject.
func RequireAuth(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	keys := []string{cfg.Auth.JWTSecret, cfg.Auth.ServiceRoleKey, cfg.Auth.AnonKey}
	debug := cfg.Server.DebugEnabled

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		userID := verifyToken(raw, keys, debug, log)
		if userID == "" {
			unauthorized(c)
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextToken, raw)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// verifyToken returns the token's subject claim, or "" when no configured key
// verifies the signature. Audience and issuer claims are not checked; tokens
// minted by the identity provider carry values this backend does not control.
func verifyToken(raw string, keys []string, debug bool, log *logrus.Logger) string {
	for _, key := range keys {
		if key == "" {
			continue
		}

		secret := []byte(key)
		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			log.WithError(err).Debug("Token verification failed with configured key")
			continue
		}

		if sub := subjectOf(token.Claims); sub != "" {
			return sub
		}
	}

	if debug {
		token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
		if err == nil {
			if sub := subjectOf(token.Claims); sub != "" {
				log.Warn("Accepting unverified token in debug mode")
				return sub
			}
		}
	}

	log.Debug("All token verification attempts failed")
	return ""
}

func subjectOf(claims jwt.Claims) string {
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "Could not validate credentials. Please check authentication.",
		"code":  "unauthorized",
	})
}
