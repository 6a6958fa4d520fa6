// Package probe 依次执行具名检查表达式
package probe

import (
	"context"
	"errors"
	"time"

	"cdpinspect/internal/cdp"
	"cdpinspect/internal/logger"
	"cdpinspect/pkg/domain"
)

// Evaluator 可执行表达式的会话
type Evaluator interface {
	Evaluate(ctx context.Context, expression string) (*domain.Result, error)
}

// Recorder 检查结果记录器，nil 表示不记录
type Recorder interface {
	SaveEvaluation(ctx context.Context, session domain.SessionID, name, expr string, res *domain.Result, callErr error) error
}

// Runner 检查执行器
type Runner struct {
	Session  domain.SessionID
	Recorder Recorder
	Logger   logger.Logger
}

// Run 按顺序执行检查；单项失败不影响后续检查，会话关闭或上下文取消后剩余检查直接记为失败
func (r *Runner) Run(ctx context.Context, ev Evaluator, checks []domain.Check) []domain.CheckResult {
	l := r.Logger
	if l == nil {
		l = logger.NewNop()
	}
	out := make([]domain.CheckResult, 0, len(checks))
	var stop error
	for _, c := range checks {
		if stop == nil {
			stop = ctx.Err()
		}
		if stop != nil {
			out = append(out, domain.CheckResult{Check: c, Err: stop})
			continue
		}

		start := time.Now()
		res, err := ev.Evaluate(ctx, c.Expression)
		cr := domain.CheckResult{Check: c, Result: res, Err: err, Duration: time.Since(start)}
		out = append(out, cr)

		switch {
		case err != nil:
			l.Err(err, "检查执行失败", "name", c.Name)
			if errors.Is(err, cdp.ErrClosed) {
				stop = err
			}
		case res.Err() != nil:
			l.Warn("检查表达式抛出异常", "name", c.Name, "error", res.Err().Error())
		default:
			l.Debug("检查完成", "name", c.Name, "value", res.String(), "duration", cr.Duration)
		}

		if r.Recorder != nil {
			if rerr := r.Recorder.SaveEvaluation(ctx, r.Session, c.Name, c.Expression, res, err); rerr != nil {
				l.Err(rerr, "保存检查结果失败", "name", c.Name)
			}
		}
	}
	return out
}

// Failed 返回未通过的检查数
func Failed(results []domain.CheckResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
