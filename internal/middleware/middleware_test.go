package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/applytrack-api/internal/models"
	"github.com/noah-isme/applytrack-api/pkg/config"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenVerifier(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: testSecret, Issuer: "identity"})

	claims, err := verifier.Verify(signToken(t, validClaims(), jwt.SigningMethodHS256, []byte(testSecret)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	subjectOnly := &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity", Subject: "user-9"}}
	claims, err = verifier.Verify(signToken(t, subjectOnly, jwt.SigningMethodHS256, []byte(testSecret)))
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID)

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "elsewhere"
	_, err = verifier.Verify(signToken(t, wrongIssuer, jwt.SigningMethodHS256, []byte(testSecret)))
	assert.Error(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = verifier.Verify(signToken(t, expired, jwt.SigningMethodHS256, []byte(testSecret)))
	assert.Error(t, err)

	_, err = verifier.Verify(signToken(t, validClaims(), jwt.SigningMethodHS256, []byte("other")))
	assert.Error(t, err)

	_, err = verifier.Verify(signToken(t, validClaims(), jwt.SigningMethodHS512, []byte(testSecret)))
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := NewTokenVerifier(config.JWTConfig{Secret: testSecret})
	router := gin.New()
	router.GET("/me", JWT(verifier), func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"invalid", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, validClaims(), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

type observerStub struct {
	mu    sync.Mutex
	paths []string
	codes []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, path)
	o.codes = append(o.codes, status)
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	router := gin.New()
	router.Use(Metrics(obs))
	router.GET("/runs/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/runs/abc", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"/runs/:id", "unmatched"}, obs.paths)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNotFound}, obs.codes)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/bare", func(c *gin.Context) {
		SetMeta(c, "cache_hit", true)
		assert.Nil(t, Meta(c))
		c.Status(http.StatusNoContent)
	})
	router.GET("/meta", ResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "cache_hit", false)
		meta := Meta(c)
		require.NotNil(t, meta)
		assert.Equal(t, false, meta["cache_hit"])
		assert.Contains(t, meta, "processing_time_ms")
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/bare", "/meta"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
