package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/middleware"
	"github.com/huangang/setupd/internal/migrations"
	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/internal/services"
	"github.com/huangang/setupd/internal/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-handlers")
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T, locked bool) *testServer {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	settings := services.NewSettingsService(db)
	users := services.NewUserService(db)
	systemLogs := services.NewSystemLogService(db)
	runner := migrations.NewRunner(db, migrations.All())
	setup := services.NewSetupService(locked, runner, settings, users).WithAuditLog(systemLogs)

	setupHandler := NewSetupHandler(setup)
	authHandler := NewAuthHandler(services.NewAuthService(db, &config.JWTConfig{ExpireHour: 1}))
	settingsHandler := NewSettingsHandler(settings)
	systemLogHandler := NewSystemLogHandler(systemLogs)
	healthHandler := NewHealthHandler(db, setup)

	r := gin.New()
	r.Use(middleware.RequestInfo())
	r.GET("/health", healthHandler.CheckHealth)
	api := r.Group("/api")
	api.GET("/setup", setupHandler.GetStatus)
	api.POST("/setup", setupHandler.Setup)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.AuthRequired(), authHandler.GetCurrentUser)
	admin := api.Group("", middleware.AuthRequired(), middleware.AdminRequired())
	admin.GET("/settings", settingsHandler.Get)
	admin.PUT("/settings", settingsHandler.Update)
	admin.GET("/system-logs", systemLogHandler.List)

	return &testServer{db: db, router: r}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func validSetupBody() gin.H {
	return gin.H{
		"settings": gin.H{
			"organization_name":          "Acme",
			"organization_contact_email": "ops@acme.test",
			"organization_url":           "https://acme.test",
			"locale":                     "en-US",
		},
		"user": gin.H{
			"email":    "admin@acme.test",
			"username": "firstadmin",
			"password": "s3cure-passw0rd",
		},
	}
}
