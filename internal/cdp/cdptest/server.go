// Package cdptest 提供测试用的伪调试端点：HTTP 目标列表加 WebSocket 协议对端
package cdptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Request 对端收到的请求
type Request struct {
	ID     int64
	Method string
	Params gjson.Result
	Raw    []byte
}

// HandlerFunc 处理单个入站请求
type HandlerFunc func(p *Peer, req Request)

// Server 伪调试端点
type Server struct {
	*httptest.Server

	t        testing.TB
	mu       sync.Mutex
	handler  HandlerFunc
	listing  []byte
	peers    chan *Peer
	requests []Request
}

// New 启动伪端点；h 为 nil 时使用 DefaultHandler
func New(t testing.TB, h HandlerFunc) *Server {
	t.Helper()
	if h == nil {
		h = DefaultHandler
	}
	s := &Server{t: t, handler: h, peers: make(chan *Peer, 8)}
	mux := http.NewServeMux()
	mux.HandleFunc("/json", s.serveList)
	mux.HandleFunc("/json/list", s.serveList)
	mux.HandleFunc("/json/version", s.serveVersion)
	mux.HandleFunc("/devtools/page/", s.serveWS)
	s.Server = httptest.NewServer(mux)
	s.listing = []byte(fmt.Sprintf(`[{"id":"1","type":"page","title":"Demo","url":"http://x/demo.html","webSocketDebuggerUrl":%q}]`, s.WebSocketURL("1")))
	t.Cleanup(s.Close)
	return s
}

// WebSocketURL 返回指定目标的通道地址
func (s *Server) WebSocketURL(id string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/devtools/page/" + id
}

// SetListing 替换目标列表响应体（可为非法 JSON）
func (s *Server) SetListing(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing = []byte(body)
}

// Requests 返回目前收到的全部请求
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Peer 等待下一个建立的协议连接
func (s *Server) Peer(timeout time.Duration) *Peer {
	s.t.Helper()
	select {
	case p := <-s.peers:
		return p
	case <-time.After(timeout):
		s.t.Fatalf("no peer connected within %s", timeout)
		return nil
	}
}

func (s *Server) serveList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	body := s.listing
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// serveVersion 应答版本查询；devtool 解析非 localhost 主机时依赖该路径
func (s *Server) serveVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"Browser":"HeadlessChrome/124.0.0.0","Protocol-Version":"1.3","User-Agent":"cdptest","webSocketDebuggerUrl":%q}`,
		"ws"+strings.TrimPrefix(s.URL, "http")+"/devtools/browser/cdptest")
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &Peer{ws: ws, closed: make(chan struct{})}
	select {
	case s.peers <- p:
	default:
	}
	defer p.Close()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		req := Request{
			ID:     gjson.GetBytes(data, "id").Int(),
			Method: gjson.GetBytes(data, "method").String(),
			Params: gjson.GetBytes(data, "params"),
			Raw:    data,
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		h := s.handler
		s.mu.Unlock()
		h(p, req)
	}
}

// Peer 服务端一侧的协议连接
type Peer struct {
	ws        *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// SendRaw 原样发送一条消息
func (p *Peer) SendRaw(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ws.WriteMessage(websocket.TextMessage, data)
}

// Reply 发送成功响应
func (p *Peer) Reply(id int64, result any) {
	b, _ := json.Marshal(map[string]any{"id": id, "result": result})
	p.SendRaw(b)
}

// ReplyError 发送错误响应
func (p *Peer) ReplyError(id int64, code int, message string) {
	b, _ := json.Marshal(map[string]any{"id": id, "error": map[string]any{"code": code, "message": message}})
	p.SendRaw(b)
}

// Event 推送一条事件
func (p *Peer) Event(method string, params any) {
	b, _ := json.Marshal(map[string]any{"method": method, "params": params})
	p.SendRaw(b)
}

// After 延迟执行 fn，用于模拟异步推送
func (p *Peer) After(d time.Duration, fn func()) {
	go func() {
		select {
		case <-time.After(d):
			fn()
		case <-p.closed:
		}
	}()
}

// Close 关闭连接
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.ws.Close()
	})
}

// DefaultHandler 应答 *.enable、Page.navigate 与少量 Runtime.evaluate 表达式
func DefaultHandler(p *Peer, req Request) {
	switch {
	case strings.HasSuffix(req.Method, ".enable"):
		p.Reply(req.ID, map[string]any{})
	case req.Method == "Page.navigate":
		p.Reply(req.ID, map[string]any{"frameId": "F1", "loaderId": "L1"})
	case req.Method == "Runtime.evaluate":
		p.Reply(req.ID, Evaluate(req.Params.Get("expression").String()))
	default:
		p.ReplyError(req.ID, -32601, fmt.Sprintf("'%s' wasn't found", req.Method))
	}
}

// Evaluate 伪求值：覆盖测试中用到的表达式
func Evaluate(expr string) map[string]any {
	switch expr {
	case "2 + 2":
		return remote("number", 4)
	case "1 + 1":
		return remote("number", 2)
	case `"ready"`:
		return remote("string", "ready")
	case "1/0":
		return map[string]any{"result": map[string]any{"type": "number", "unserializableValue": "Infinity", "description": "Infinity"}}
	case "document.body":
		return map[string]any{"result": map[string]any{"type": "object", "subtype": "node", "className": "HTMLBodyElement", "description": "body"}}
	case "nonExistentVar.prop":
		return map[string]any{
			"result": map[string]any{"type": "object", "subtype": "error", "className": "ReferenceError",
				"description": "ReferenceError: nonExistentVar is not defined\n    at <anonymous>:1:1"},
			"exceptionDetails": map[string]any{
				"exceptionId": 1, "text": "Uncaught", "lineNumber": 0, "columnNumber": 0,
				"exception": map[string]any{"type": "object", "subtype": "error", "className": "ReferenceError",
					"description": "ReferenceError: nonExistentVar is not defined\n    at <anonymous>:1:1"},
			},
		}
	}
	if strings.HasPrefix(expr, "typeof ") {
		return remote("string", "undefined")
	}
	return map[string]any{"result": map[string]any{"type": "undefined"}}
}

func remote(typ string, value any) map[string]any {
	return map[string]any{"result": map[string]any{"type": typ, "value": value}}
}
