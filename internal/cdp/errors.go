package cdp

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery 调试端点不可达或目标列表格式错误
	ErrDiscovery = errors.New("target discovery failed")

	// ErrConnection 调试通道建立失败
	ErrConnection = errors.New("connection failed")

	// ErrProtocol 远端拒绝请求或消息格式错误
	ErrProtocol = errors.New("protocol error")

	// ErrTimeout 截止时间内未收到匹配的响应
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrClosed 会话已关闭
	ErrClosed = errors.New("session closed")

	// ErrNoTarget 没有匹配条件的目标
	ErrNoTarget = errors.New("no matching target")

	// ErrObserving 同一会话上已有进行中的事件收集窗口
	ErrObserving = errors.New("observation already in progress")
)

// ProtocolError 远端对某一请求返回的错误
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Is 使 errors.Is(err, ErrProtocol) 成立
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
