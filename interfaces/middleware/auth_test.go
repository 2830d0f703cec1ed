package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crosspost/infrastructure/utils"
	"crosspost/interfaces/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/me", middleware.Auth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	token, err := utils.IssueToken("user-1", "alice", time.Hour, secret)
	require.NoError(t, err)

	w := do(newRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	w := do(newRouter(), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"responseCode":"401"`)
}

func TestAuthRejectsMalformedToken(t *testing.T) {
	w := do(newRouter(), "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "That's not even a token")
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	token, err := utils.IssueToken("user-1", "", -time.Hour, secret)
	require.NoError(t, err)

	w := do(newRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Timing is everything")
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	token, err := utils.IssueToken("user-1", "", 0, "other")
	require.NoError(t, err)

	w := do(newRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	token, err := utils.IssueToken("", "alice", 0, secret)
	require.NoError(t, err)

	w := do(newRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
