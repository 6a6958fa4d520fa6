package cdp

import (
	"context"
	"fmt"
	"strings"

	"cdpinspect/internal/logger"
	"cdpinspect/pkg/domain"

	"github.com/mafredri/cdp/devtool"
)

// ListTargets 查询调试端点的目标列表，原样返回，不做过滤也不重试
func ListTargets(ctx context.Context, devtoolsURL string) ([]domain.TargetInfo, error) {
	dt := devtool.New(devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDiscovery, devtoolsURL, err)
	}
	out := make([]domain.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t == nil {
			continue
		}
		out = append(out, domain.TargetInfo{
			ID:           domain.TargetID(t.ID),
			Type:         string(t.Type),
			Title:        t.Title,
			URL:          t.URL,
			Description:  t.Description,
			WebSocketURL: t.WebSocketDebuggerURL,
		})
	}
	return out, nil
}

// Filter 返回满足 pred 的目标
func Filter(ts []domain.TargetInfo, pred func(domain.TargetInfo) bool) []domain.TargetInfo {
	var out []domain.TargetInfo
	for _, t := range ts {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// Pages 仅保留页面类型目标
func Pages(ts []domain.TargetInfo) []domain.TargetInfo {
	return Filter(ts, domain.TargetInfo.IsPage)
}

// FilterURL 保留 URL 包含 substr 的页面目标
func FilterURL(ts []domain.TargetInfo, substr string) []domain.TargetInfo {
	return Filter(ts, func(t domain.TargetInfo) bool {
		return t.IsPage() && strings.Contains(t.URL, substr)
	})
}

// SelectOptions 目标选择条件
type SelectOptions struct {
	URLContains string
	// Fallback 无匹配时退回第一个页面目标
	Fallback bool
	Logger   logger.Logger
}

// SelectTarget 按 URL 子串选择目标；无匹配时除非显式开启 Fallback 否则返回 ErrNoTarget
func SelectTarget(ts []domain.TargetInfo, opts SelectOptions) (domain.TargetInfo, error) {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	pages := Pages(ts)
	matched := pages
	if opts.URLContains != "" {
		matched = FilterURL(pages, opts.URLContains)
	}
	if len(matched) > 0 {
		if len(matched) > 1 {
			l.Debug("多个目标匹配，取第一个", "count", len(matched), "url", matched[0].URL)
		}
		return matched[0], nil
	}
	if opts.Fallback && len(pages) > 0 {
		l.Warn("未找到匹配目标，退回第一个页面", "want", opts.URLContains, "url", pages[0].URL)
		return pages[0], nil
	}
	if opts.URLContains != "" {
		return domain.TargetInfo{}, fmt.Errorf("%w: no page url contains %q", ErrNoTarget, opts.URLContains)
	}
	return domain.TargetInfo{}, fmt.Errorf("%w: no page targets", ErrNoTarget)
}
