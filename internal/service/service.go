package service

import (
	"context"
	"fmt"
	"time"

	"cdpinspect/internal/cdp"
	"cdpinspect/internal/config"
	"cdpinspect/internal/ctxkeys"
	"cdpinspect/internal/handler"
	"cdpinspect/internal/logger"
	"cdpinspect/internal/probe"
	"cdpinspect/internal/rules"
	"cdpinspect/internal/session"
	"cdpinspect/internal/storage"
	"cdpinspect/pkg/domain"
)

const eventBuffer = 1024

// Service 服务实现
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	sessions *session.Manager
	engine   *rules.Engine
	handler  *handler.Handler
	store    *storage.Store
	events   chan domain.Event
}

// New 创建并返回服务实现；开启记录时打开 sqlite 记录库
func New(l logger.Logger, cfg *config.Config) (*Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Service{
		cfg:      cfg,
		log:      l,
		sessions: session.NewManager(l),
		engine:   rules.New(rules.Filter{}),
		events:   make(chan domain.Event, eventBuffer),
	}
	if cfg.Sqlite.Enabled {
		store, err := storage.Open(storage.Options{Dsn: cfg.Sqlite.Dsn, Prefix: cfg.Sqlite.Prefix, Logger: l})
		if err != nil {
			return nil, err
		}
		s.store = store
		l.Info("已开启检查记录", "dsn", cfg.Sqlite.Dsn)
	}
	s.handler = handler.New(handler.Config{
		Engine: s.engine,
		Store:  s.store,
		Events: s.events,
		Logger: l.With("component", "handler"),
	})
	s.handler.Start(ctxkeys.WithTraceID(context.Background()))
	return s, nil
}

// ListTargets 列出调试端点上的目标
func (s *Service) ListTargets(ctx context.Context) ([]domain.TargetInfo, error) {
	return cdp.ListTargets(ctx, s.cfg.DevTools.URL)
}

// SelectTarget 列出目标并按 URL 子串挑选
func (s *Service) SelectTarget(ctx context.Context, urlContains string, fallback bool) (domain.TargetInfo, error) {
	ts, err := s.ListTargets(ctx)
	if err != nil {
		return domain.TargetInfo{}, err
	}
	return cdp.SelectTarget(ts, cdp.SelectOptions{URLContains: urlContains, Fallback: fallback, Logger: s.log})
}

// Attach 连接目标并注册会话
func (s *Service) Attach(ctx context.Context, target domain.TargetInfo) (domain.SessionID, error) {
	if target.WebSocketURL == "" {
		return "", fmt.Errorf("%w: target %s has no debugger url", cdp.ErrConnection, target.ID)
	}
	sess, err := cdp.Connect(ctx, target.WebSocketURL, cdp.Options{
		DialTimeout: s.cfg.DevTools.DialTimeout,
		EvalTimeout: s.cfg.DevTools.EvalTimeout,
		Logger:      s.log,
	})
	if err != nil {
		return "", err
	}
	sess.SetObserver(s.handler.Observer())
	s.sessions.Add(sess)
	s.log.Info("已附加目标", "sessionID", string(sess.ID()), "target", string(target.ID), "url", target.URL)
	return sess.ID(), nil
}

// Detach 关闭会话
func (s *Service) Detach(id domain.SessionID) error {
	if _, ok := s.sessions.Get(id); !ok {
		return fmt.Errorf("%w: %s", cdp.ErrClosed, id)
	}
	return s.sessions.Delete(id)
}

// Enable 依次启用协议能力
func (s *Service) Enable(ctx context.Context, id domain.SessionID, capabilities ...string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	for _, c := range capabilities {
		if err := sess.Enable(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Navigate 导航会话所在页面
func (s *Service) Navigate(ctx context.Context, id domain.SessionID, url string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	frame, err := sess.Navigate(ctx, url)
	if err != nil {
		return err
	}
	s.log.Debug("页面已导航", "sessionID", string(id), "url", url, "frameId", frame)
	return nil
}

// Evaluate 求值并记录
func (s *Service) Evaluate(ctx context.Context, id domain.SessionID, expression string) (*domain.Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	res, err := sess.Evaluate(ctx, expression)
	if s.store != nil {
		if serr := s.store.SaveEvaluation(ctx, id, "", expression, res, err); serr != nil {
			s.log.Err(serr, "保存求值结果失败")
		}
	}
	return res, err
}

// RunChecks 执行一组检查
func (s *Service) RunChecks(ctx context.Context, id domain.SessionID, checks []domain.Check) ([]domain.CheckResult, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	r := &probe.Runner{Session: id, Logger: s.log.With("sessionID", string(id))}
	if s.store != nil {
		r.Recorder = s.store
	}
	return r.Run(ctx, sess, checks), nil
}

// Observe 在 d 时间内收集满足过滤规则的事件
func (s *Service) Observe(ctx context.Context, id domain.SessionID, d time.Duration, f rules.Filter) (<-chan domain.Event, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	in, err := sess.Observe(ctx, d, rules.New(f).Predicate())
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return in, nil
	}
	out := make(chan domain.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			if err := s.store.SaveEvent(ctx, ev); err != nil {
				s.log.Err(err, "保存事件失败", "method", ev.Method)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SetFilter 设置收集窗口之外事件的过滤规则
func (s *Service) SetFilter(f rules.Filter) {
	s.engine.Update(f)
}

// Events 收集窗口之外到达的事件
func (s *Service) Events() <-chan domain.Event {
	return s.events
}

// Close 关闭全部会话、事件处理器与记录库
func (s *Service) Close() error {
	err := s.sessions.CloseAll()
	s.handler.Stop()
	if s.store != nil {
		if serr := s.store.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func (s *Service) get(id domain.SessionID) (*cdp.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cdp.ErrClosed, id)
	}
	return sess, nil
}
