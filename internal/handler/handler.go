package handler

import (
	"context"
	"sync"
	"sync/atomic"

	"cdpinspect/internal/cdp"
	"cdpinspect/internal/logger"
	"cdpinspect/internal/rules"
	"cdpinspect/internal/storage"
	"cdpinspect/pkg/domain"
)

const defaultQueueSize = 1024

// Handler 事件处理器，负责协调规则匹配、事件落库和事件发送
type Handler struct {
	engine  *rules.Engine
	store   *storage.Store
	events  chan domain.Event
	queue   chan domain.Event
	quit    chan struct{}
	wg      sync.WaitGroup
	start   sync.Once
	stop    sync.Once
	dropped atomic.Int64
	log     logger.Logger
}

// Config 配置选项
type Config struct {
	Engine    *rules.Engine
	Store     *storage.Store
	Events    chan domain.Event
	QueueSize int
	Logger    logger.Logger
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Handler{
		engine: cfg.Engine,
		store:  cfg.Store,
		events: cfg.Events,
		queue:  make(chan domain.Event, size),
		quit:   make(chan struct{}),
		log:    l,
	}
}

// Start 启动后台处理协程；ctx 携带落库使用的追踪ID
func (h *Handler) Start(ctx context.Context) {
	h.start.Do(func() {
		h.wg.Add(1)
		go h.loop(ctx)
	})
}

// Stop 处理完已入队的事件后退出后台协程
func (h *Handler) Stop() {
	h.stop.Do(func() { close(h.quit) })
	h.wg.Wait()
}

// Handle 同步处理单个事件，未命中规则时返回 false
func (h *Handler) Handle(ctx context.Context, ev domain.Event) bool {
	if !h.engine.Match(ev) {
		h.log.Debug("事件未命中过滤规则", "method", ev.Method, "category", string(ev.Category))
		return false
	}
	if h.store != nil {
		if err := h.store.SaveEvent(ctx, ev); err != nil {
			h.log.Err(err, "保存事件失败", "method", ev.Method)
		}
	}
	h.sendEvent(ev)
	return true
}

// Observer 将处理器适配为会话观察者；只做非阻塞入队，匹配与落库在后台协程完成
func (h *Handler) Observer() cdp.Observer {
	return h.enqueue
}

// Dropped 因队列或通道已满而丢弃的事件数
func (h *Handler) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Handler) enqueue(ev domain.Event) {
	select {
	case <-h.quit:
		return
	default:
	}
	select {
	case h.queue <- ev:
	default:
		h.dropped.Add(1)
		h.log.Warn("事件队列已满，丢弃事件", "method", ev.Method)
	}
}

func (h *Handler) loop(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case ev := <-h.queue:
			h.Handle(ctx, ev)
		case <-h.quit:
			for {
				select {
				case ev := <-h.queue:
					h.Handle(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// sendEvent 非阻塞发送事件
func (h *Handler) sendEvent(ev domain.Event) {
	if h.events == nil {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
		h.log.Warn("事件通道已满，丢弃事件", "method", ev.Method)
	}
}
