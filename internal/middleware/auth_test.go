package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.manna.backend/internal/config"
)

func authTestConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "primary-secret",
			ServiceRoleKey: "service-role-secret",
			AnonKey:        "anon-secret",
		},
	}
}

func newAuthTestRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	r := gin.New()
	r.GET("/whoami", RequireAuth(cfg, log), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(ContextUserID),
			"token":   c.GetString(ContextToken),
		})
	})
	return r
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doAuthRequest(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	userID := "5c4f9a52-03b4-4bb6-b3d7-9e1f0a2b4c6d"

	t.Run("missing header is rejected", func(t *testing.T) {
		r := newAuthTestRouter(authTestConfig())

		w := doAuthRequest(r, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})

	t.Run("malformed headers are rejected", func(t *testing.T) {
		r := newAuthTestRouter(authTestConfig())

		for _, header := range []string{"Bearer", "Bearer ", "Token abc", "abc"} {
			w := doAuthRequest(r, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		}
	})

	t.Run("token signed with the primary secret", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.JWTSecret, jwt.MapClaims{
			"sub": userID,
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		w := doAuthRequest(r, "Bearer "+token)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, userID, body["user_id"])
	})

	t.Run("token signed with the service role key", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.ServiceRoleKey, jwt.MapClaims{"sub": userID})

		w := doAuthRequest(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("token signed with the anon key", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.AnonKey, jwt.MapClaims{"sub": userID})

		w := doAuthRequest(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("token signed with an unknown key is rejected", func(t *testing.T) {
		r := newAuthTestRouter(authTestConfig())
		token := signToken(t, "some-other-secret", jwt.MapClaims{"sub": userID})

		w := doAuthRequest(r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown key accepted in debug mode", func(t *testing.T) {
		cfg := authTestConfig()
		cfg.Server.DebugEnabled = true
		r := newAuthTestRouter(cfg)
		token := signToken(t, "some-other-secret", jwt.MapClaims{"sub": userID})

		w := doAuthRequest(r, "Bearer "+token)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, userID, body["user_id"])
	})

	t.Run("debug fallback still requires a subject", func(t *testing.T) {
		cfg := authTestConfig()
		cfg.Server.DebugEnabled = true
		r := newAuthTestRouter(cfg)
		token := signToken(t, "some-other-secret", jwt.MapClaims{"role": "anon"})

		w := doAuthRequest(r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.JWTSecret, jwt.MapClaims{
			"sub": userID,
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		w := doAuthRequest(r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token without a subject is rejected", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.JWTSecret, jwt.MapClaims{"role": "authenticated"})

		w := doAuthRequest(r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.JWTSecret, jwt.MapClaims{"sub": userID})

		w := doAuthRequest(r, "bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("raw token is stored on the context", func(t *testing.T) {
		cfg := authTestConfig()
		r := newAuthTestRouter(cfg)
		token := signToken(t, cfg.Auth.JWTSecret, jwt.MapClaims{"sub": userID})

		w := doAuthRequest(r, "Bearer "+token)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, token, body["token"])
	})
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
	}

	for _, tc := range cases {
		token, ok := bearerToken(tc.header)
		assert.Equal(t, tc.ok, ok, "header %q", tc.header)
		assert.Equal(t, tc.token, token, "header %q", tc.header)
	}
}
