package storage

import (
	"context"
	"fmt"
	"time"

	"cdpinspect/internal/ctxkeys"
	"cdpinspect/internal/logger"
	"cdpinspect/pkg/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// EventRecord 记录的推送事件
type EventRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index;size:64"`
	TraceID   string `gorm:"size:64"`
	Method    string `gorm:"size:128"`
	Category  string `gorm:"index;size:32"`
	Severity  string `gorm:"index;size:16"`
	Text      string
	Detail    string
	Source    string
	Params    string
	At        time.Time `gorm:"index"`
}

// EvaluationRecord 记录的表达式求值
type EvaluationRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index;size:64"`
	TraceID    string `gorm:"size:64"`
	Name       string `gorm:"size:128"`
	Expression string
	Type       string `gorm:"size:32"`
	Value      string
	Exception  string
	Error      string
	At         time.Time
}

// Options 存储配置
type Options struct {
	Dsn    string
	Prefix string
	Logger logger.Logger
}

// Store 基于 GORM 的检查记录库
type Store struct {
	db *gorm.DB
}

// Open 打开 sqlite 记录库并迁移表结构
func Open(opts Options) (*Store, error) {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(opts.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.Prefix},
		Logger:         NewGormLogger(l).LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", opts.Dsn, err)
	}
	if err := db.AutoMigrate(&EventRecord{}, &EvaluationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveEvent 保存一条事件
func (s *Store) SaveEvent(ctx context.Context, ev domain.Event) error {
	rec := EventRecord{
		SessionID: string(ev.Session),
		TraceID:   ctxkeys.TraceID(ctx),
		Method:    ev.Method,
		Category:  string(ev.Category),
		Severity:  ev.Severity.String(),
		Text:      ev.Text,
		Detail:    ev.Detail,
		Source:    ev.Source,
		Params:    string(ev.Params),
		At:        ev.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// SaveEvaluation 保存一次求值及其结果或错误
func (s *Store) SaveEvaluation(ctx context.Context, session domain.SessionID, name, expr string, res *domain.Result, callErr error) error {
	rec := EvaluationRecord{
		SessionID:  string(session),
		TraceID:    ctxkeys.TraceID(ctx),
		Name:       name,
		Expression: expr,
		At:         time.Now(),
	}
	if res != nil {
		rec.Type = res.Type
		rec.Value = res.String()
		if res.Exception != nil {
			rec.Exception = res.Exception.Error()
		}
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// ListEvents 按时间顺序列出会话的事件；session 为空时列出全部
func (s *Store) ListEvents(ctx context.Context, session domain.SessionID) ([]EventRecord, error) {
	var out []EventRecord
	q := s.db.WithContext(ctx).Order("at, id")
	if session != "" {
		q = q.Where("session_id = ?", string(session))
	}
	return out, q.Find(&out).Error
}

// ListEvaluations 列出会话的求值记录
func (s *Store) ListEvaluations(ctx context.Context, session domain.SessionID) ([]EvaluationRecord, error) {
	var out []EvaluationRecord
	q := s.db.WithContext(ctx).Order("id")
	if session != "" {
		q = q.Where("session_id = ?", string(session))
	}
	return out, q.Find(&out).Error
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
