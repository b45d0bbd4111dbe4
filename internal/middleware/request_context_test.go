package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/auditctx"
)

func TestRequestContextAttachesClientMetadata(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got auditctx.Request
	r := gin.New()
	r.Use(RequestContext())
	r.GET("/", func(c *gin.Context) {
		got, _ = auditctx.FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "expensely-test")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "203.0.113.7", got.IPAddress)
	require.Equal(t, "expensely-test", got.UserAgent)
}
