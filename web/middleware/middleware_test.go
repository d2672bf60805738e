package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/infigaming-com/go-membus/util"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestCorrelationIdMiddleware(t *testing.T) {
	var seen string
	r := newEngine(CorrelationIdMiddleware())
	r.GET("/", func(c *gin.Context) {
		seen, _ = util.CorrelationIdFromCtx(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIdKey, "from-caller")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "from-caller", seen)
		assert.Equal(t, "from-caller", w.Header().Get(CorrelationIdKey))
	})

	t.Run("mints id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(CorrelationIdKey))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newEngine(
		CorrelationIdMiddleware(),
		LoggingMiddleware(WithLogger(zap.New(core)), WithMaxBody(4), WithExcludePaths([]string{"/healthcheck"})),
	)
	r.POST("/echo", func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusOK, string(body))
	})
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello world"))
	req.Header.Set(CorrelationIdKey, "cid")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "hello world", w.Body.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "cid", fields["correlation_id"])
	assert.Equal(t, "hell", fields["requestBody"])
	assert.Equal(t, "hell", fields["responseBody"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}
