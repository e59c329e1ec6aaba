package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/huangang/setupd/internal/models"
	"gorm.io/gorm"
)

const (
	SourceHTTP = "http"
	SourceCLI  = "cli"
)

type requestInfoKey struct{}

type requestInfo struct {
	source string
	ip     string
}

// WithRequestInfo tags ctx with where a setup attempt came from so the audit
// trail can record it.
func WithRequestInfo(ctx context.Context, source, ip string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{source: source, ip: ip})
}

// RequestInfoFrom returns the source and IP stored by WithRequestInfo.
func RequestInfoFrom(ctx context.Context) (source, ip string) {
	if info, ok := ctx.Value(requestInfoKey{}).(requestInfo); ok {
		return info.source, info.ip
	}
	return "", ""
}

// SystemLogService writes audit rows to system_logs. Writes are best effort:
// the table only exists once migrations have run.
type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

func (s *SystemLogService) Info(ctx context.Context, action string, stage Stage, message string, userID *uint, extra interface{}) {
	s.write(ctx, "info", action, stage, message, userID, extra)
}

func (s *SystemLogService) Error(ctx context.Context, action string, stage Stage, message string, userID *uint, extra interface{}) {
	s.write(ctx, "error", action, stage, message, userID, extra)
}

func (s *SystemLogService) write(ctx context.Context, level, action string, stage Stage, message string, userID *uint, extra interface{}) {
	// audit rows must land even when the request context is already done
	db := s.db.WithContext(context.WithoutCancel(ctx))
	if !db.Migrator().HasTable(&models.SystemLog{}) {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	source, ip := RequestInfoFrom(ctx)
	db.Create(&models.SystemLog{
		Level:     level,
		Action:    action,
		Stage:     string(stage),
		Source:    source,
		Message:   message,
		UserID:    userID,
		IP:        ip,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	})
}

// List returns the most recent audit rows, newest first.
func (s *SystemLogService) List(ctx context.Context, limit int) ([]models.SystemLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []models.SystemLog
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
