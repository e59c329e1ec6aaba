package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/api/setup", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name     string
		handler  gin.HandlerFunc
		status   int
		code     int
		message  string
		withData bool
	}{
		{"success", func(c *gin.Context) { Success(c, gin.H{"status": "available"}) }, http.StatusOK, 0, "ok", true},
		{"created", func(c *gin.Context) { Created(c, gin.H{"id": 1}) }, http.StatusCreated, 0, "created", true},
		{"bad request", func(c *gin.Context) { BadRequest(c, "invalid input") }, http.StatusBadRequest, 400, "invalid input", false},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "token expired") }, http.StatusUnauthorized, 401, "token expired", false},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "admin access required") }, http.StatusForbidden, 403, "admin access required", false},
		{"not found", func(c *gin.Context) { NotFound(c, "instance is not initialized") }, http.StatusNotFound, 404, "instance is not initialized", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(tt.handler)
			assert.Equal(t, tt.status, w.Code)

			var raw map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
			_, hasData := raw["data"]
			assert.Equal(t, tt.withData, hasData)

			resp := parseResponse(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestError_GenericErrorIs500(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("migration 0002_create_settings: disk I/O error"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, 500, resp.Code)
	assert.Equal(t, "migration 0002_create_settings: disk I/O error", resp.Message)
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("setup is locked")
	err := Wrap(http.StatusForbidden, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "setup is locked", err.Error())

	w := performRequest(func(c *gin.Context) { Error(c, err) })
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 403, parseResponse(t, w).Code)
}

func TestError_FindsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("handler: %w", Wrap(http.StatusConflict, errors.New("already initialized")))

	w := performRequest(func(c *gin.Context) { Error(c, err) })
	assert.Equal(t, http.StatusConflict, w.Code)

	resp := parseResponse(t, w)
	assert.Equal(t, 409, resp.Code)
	assert.Equal(t, "already initialized", resp.Message)
}
