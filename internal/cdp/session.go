package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	adapter "cdpinspect/internal/adapter/cdp"
	"cdpinspect/internal/logger"
	"cdpinspect/internal/protocol"
	"cdpinspect/internal/transport"
	"cdpinspect/pkg/domain"

	"github.com/google/uuid"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"
)

// Observer 处理不属于任何请求的推送事件；在读循环中同步调用，不得阻塞
type Observer func(domain.Event)

// Predicate 事件收集窗口的过滤条件
type Predicate func(domain.Event) bool

// Options 会话配置
type Options struct {
	ID            domain.SessionID
	DialTimeout   time.Duration
	EvalTimeout   time.Duration // 调用方上下文无截止时间时使用
	ObserveBuffer int
	Observer      Observer
	Logger        logger.Logger
}

const defaultObserveBuffer = 256

// Session 绑定单个目标的检查会话：请求关联与事件分发
type Session struct {
	id          domain.SessionID
	addr        string
	conn        transport.Conn
	log         logger.Logger
	evalTimeout time.Duration
	bufSize     int

	nextID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan *protocol.Message
	observer Observer
	window   *window
	reason   error

	done      chan struct{}
	shutOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// window 一次事件收集窗口
type window struct {
	start time.Time
	end   time.Time
	pred  Predicate
	ch    chan domain.Event
}

func (w *window) covers(at time.Time) bool {
	return !at.Before(w.start) && !at.After(w.end)
}

// Connect 打开到调试通道地址的会话
func Connect(ctx context.Context, addr string, opts Options) (*Session, error) {
	conn, err := transport.Dial(ctx, addr, opts.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s := NewSession(conn, addr, opts)
	s.log.Info("会话已连接", "addr", addr)
	return s, nil
}

// NewSession 在已建立的通道上创建会话并启动读循环
func NewSession(conn transport.Conn, addr string, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	size := opts.ObserveBuffer
	if size <= 0 {
		size = defaultObserveBuffer
	}
	s := &Session{
		id:          id,
		addr:        addr,
		conn:        conn,
		log:         l.With("session", string(id)),
		evalTimeout: opts.EvalTimeout,
		bufSize:     size,
		pending:     make(map[int64]chan *protocol.Message),
		observer:    opts.Observer,
		done:        make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// ID 会话标识
func (s *Session) ID() domain.SessionID { return s.id }

// Addr 会话绑定的通道地址
func (s *Session) Addr() string { return s.addr }

// Done 会话结束时关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// SetObserver 替换当前事件观察者，nil 表示忽略
func (s *Session) SetObserver(fn Observer) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Enable 激活一个协议能力（如 Runtime、Console、Log）并等待确认
func (s *Session) Enable(ctx context.Context, capability string) error {
	method := capability
	if !strings.HasSuffix(method, ".enable") {
		method += ".enable"
	}
	if _, err := s.Call(ctx, method, nil); err != nil {
		return err
	}
	s.log.Debug("能力已启用", "method", method)
	return nil
}

// Evaluate 在目标执行上下文中求值；表达式抛出异常时通过 Result.Err 返回而非错误
func (s *Session) Evaluate(ctx context.Context, expression string) (*domain.Result, error) {
	args := runtime.NewEvaluateArgs(expression).SetReturnByValue(true)
	raw, err := s.Call(ctx, "Runtime.evaluate", args)
	if err != nil {
		return nil, err
	}
	res, err := adapter.ToResult(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if res.Exception != nil {
		s.log.Debug("表达式求值抛出异常", "expression", expression, "error", res.Exception.Error())
	}
	return res, nil
}

// Navigate 导航到指定地址，返回 frameId
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	raw, err := s.Call(ctx, "Page.navigate", page.NewNavigateArgs(url))
	if err != nil {
		return "", err
	}
	if msg := gjson.GetBytes(raw, "errorText").String(); msg != "" {
		return "", &ProtocolError{Method: "Page.navigate", Message: msg}
	}
	return gjson.GetBytes(raw, "frameId").String(), nil
}

// Call 发送请求并阻塞等待匹配的响应；关联ID由会话内部分配
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := s.nextID.Add(1)
	data, err := protocol.EncodeRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	ch := make(chan *protocol.Message, 1)
	s.mu.Lock()
	if s.isDone() {
		s.mu.Unlock()
		return nil, s.closedErr()
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.conn.WriteMessage(ctx, data); err != nil {
		s.forget(id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, &ProtocolError{Method: method, Code: msg.Error.Code, Message: msg.Error.Message}
		}
		return msg.Result, nil
	case <-ctx.Done():
		s.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.log.Warn("等待响应超时", "method", method, "id", id)
			return nil, fmt.Errorf("%w: %s (id %d)", ErrTimeout, method, id)
		}
		return nil, ctx.Err()
	case <-s.done:
		s.forget(id)
		return nil, s.closedErr()
	}
}

// Observe 开启新的收集窗口，在 d 时间内产出满足 pred 的事件；窗口结束时关闭通道
func (s *Session) Observe(ctx context.Context, d time.Duration, pred Predicate) (<-chan domain.Event, error) {
	s.mu.Lock()
	if s.isDone() {
		s.mu.Unlock()
		return nil, s.closedErr()
	}
	if s.window != nil {
		s.mu.Unlock()
		return nil, ErrObserving
	}
	start := time.Now()
	w := &window{start: start, end: start.Add(d), pred: pred, ch: make(chan domain.Event, s.bufSize)}
	s.window = w
	s.mu.Unlock()

	s.log.Debug("开始收集事件", "duration", d)
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		if s.window == w {
			s.window = nil
		}
		close(w.ch)
		s.mu.Unlock()
	}()
	return w.ch, nil
}

// Close 释放通道；可重复调用
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.shutdown(ErrClosed)
		s.closeErr = s.conn.Close()
		s.log.Info("会话已关闭")
	})
	return s.closeErr
}

func (s *Session) readLoop() {
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(err)
			return
		}
		at := time.Now()
		msg, err := protocol.Decode(data)
		if err != nil {
			s.log.Debug("丢弃无法解析的消息", "error", err)
			continue
		}
		if msg.IsResponse() {
			s.resolve(msg)
			continue
		}
		s.dispatch(adapter.ToEvent(msg.Method, msg.Params, at))
	}
}

// resolve 将响应交给等待中的请求；每个ID只消费一次
func (s *Session) resolve(msg *protocol.Message) {
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	if ok {
		delete(s.pending, msg.ID)
	}
	s.mu.Unlock()
	if !ok {
		s.log.Debug("丢弃无匹配请求的响应", "id", msg.ID)
		return
	}
	ch <- msg
}

// dispatch 收集窗口打开时事件进入窗口，否则交给观察者
func (s *Session) dispatch(ev domain.Event) {
	ev.Session = s.id
	s.mu.Lock()
	if w := s.window; w != nil && w.covers(ev.Timestamp) {
		if w.pred == nil || w.pred(ev) {
			select {
			case w.ch <- ev:
			default:
				s.log.Warn("事件缓冲已满，丢弃事件", "method", ev.Method)
			}
		}
		s.mu.Unlock()
		return
	}
	obs := s.observer
	s.mu.Unlock()
	if obs != nil {
		obs(ev)
	}
}

func (s *Session) forget(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && s.evalTimeout > 0 {
		return context.WithTimeout(ctx, s.evalTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) shutdown(reason error) {
	s.shutOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.pending = make(map[int64]chan *protocol.Message)
		s.mu.Unlock()
		close(s.done)
		if !errors.Is(reason, ErrClosed) {
			s.log.Warn("通道已断开", "error", reason)
		}
	})
}

// isDone 会话是否已结束
func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) closedErr() error {
	s.mu.Lock()
	reason := s.reason
	s.mu.Unlock()
	if reason == nil || errors.Is(reason, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, reason)
}
