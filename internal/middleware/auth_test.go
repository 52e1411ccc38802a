package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func authRequest(t *testing.T, mw gin.HandlerFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/guarded", mw, func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthToken(t *testing.T) {
	mw := Auth("secret-token")

	assert.Equal(t, http.StatusOK, authRequest(t, mw, "secret-token").Code)
	assert.Equal(t, http.StatusOK, authRequest(t, mw, "Bearer secret-token").Code)
	assert.Equal(t, http.StatusOK, authRequest(t, mw, "bearer  secret-token ").Code)

	assert.Equal(t, http.StatusUnauthorized, authRequest(t, mw, "").Code)
	assert.Equal(t, http.StatusUnauthorized, authRequest(t, mw, "wrong").Code)
}

func TestAuthDisabledWithoutConfiguredToken(t *testing.T) {
	// No configured token locks every guarded route instead of opening it.
	mw := Auth("")
	assert.Equal(t, http.StatusUnauthorized, authRequest(t, mw, "anything").Code)
}

func TestOptionalAuthNeverBlocks(t *testing.T) {
	mw := OptionalAuth("secret-token")

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/open", mw, func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.String(http.StatusOK, "operator")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, "operator", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, "anonymous", w.Body.String())
}
