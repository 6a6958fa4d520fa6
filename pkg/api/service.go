package api

import (
	"context"
	"time"

	"cdpinspect/internal/config"
	"cdpinspect/internal/logger"
	"cdpinspect/internal/rules"
	"cdpinspect/internal/service"
	"cdpinspect/pkg/domain"
)

// Service 服务接口
type Service interface {
	// ListTargets 列出目标
	ListTargets(ctx context.Context) ([]domain.TargetInfo, error)

	// SelectTarget 按 URL 子串选择页面目标
	SelectTarget(ctx context.Context, urlContains string, fallback bool) (domain.TargetInfo, error)

	// Attach 附加目标并返回会话ID
	Attach(ctx context.Context, target domain.TargetInfo) (domain.SessionID, error)

	// Detach 分离会话
	Detach(id domain.SessionID) error

	// Enable 启用协议能力
	Enable(ctx context.Context, id domain.SessionID, capabilities ...string) error

	// Navigate 导航页面
	Navigate(ctx context.Context, id domain.SessionID, url string) error

	// Evaluate 求值表达式
	Evaluate(ctx context.Context, id domain.SessionID, expression string) (*domain.Result, error)

	// RunChecks 执行检查列表
	RunChecks(ctx context.Context, id domain.SessionID, checks []domain.Check) ([]domain.CheckResult, error)

	// Observe 收集一段时间内的事件
	Observe(ctx context.Context, id domain.SessionID, d time.Duration, f rules.Filter) (<-chan domain.Event, error)

	// SetFilter 设置窗口外事件的过滤规则
	SetFilter(f rules.Filter)

	// Events 订阅窗口外事件
	Events() <-chan domain.Event

	// Close 关闭服务
	Close() error
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger, cfg *config.Config) (Service, error) {
	s, err := service.New(l, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
