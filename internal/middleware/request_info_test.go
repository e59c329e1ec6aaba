package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/services"
)

func TestRequestInfo_TagsContext(t *testing.T) {
	router := gin.New()
	router.Use(RequestInfo())

	var source, ip string
	router.GET("/info", func(c *gin.Context) {
		source, ip = services.RequestInfoFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/info", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if source != services.SourceHTTP {
		t.Errorf("expected source %q, got %q", services.SourceHTTP, source)
	}
	if ip != "192.0.2.10" {
		t.Errorf("expected ip %q, got %q", "192.0.2.10", ip)
	}
}
