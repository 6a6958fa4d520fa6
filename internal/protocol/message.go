package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformed 入站消息无法解析
var ErrMalformed = errors.New("malformed message")

// Message 解码后的入站消息（响应或事件）
type Message struct {
	ID     int64
	HasID  bool
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *RPCError
}

// RPCError 远端返回的错误负载
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// IsResponse 携带数值关联ID的消息视为响应
func (m *Message) IsResponse() bool { return m.HasID }

// IsEvent 无关联ID且带方法名的消息视为事件
func (m *Message) IsEvent() bool { return !m.HasID && m.Method != "" }

// EncodeRequest 编码出站请求 {id, method, params}
func EncodeRequest(id int64, method string, params any) ([]byte, error) {
	if method == "" {
		return nil, errors.New("empty method")
	}
	raw := []byte(`{}`)
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params for %s: %w", method, err)
		}
		if len(b) > 0 && b[0] == '{' {
			raw = b
		} else if string(b) != "null" {
			return nil, fmt.Errorf("params for %s must be an object", method)
		}
	}
	msg, err := sjson.SetBytes([]byte(`{}`), "id", id)
	if err != nil {
		return nil, err
	}
	if msg, err = sjson.SetBytes(msg, "method", method); err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(msg, "params", raw)
}

// Decode 解析入站消息；非法 JSON 或缺失必要字段返回 ErrMalformed
func Decode(data []byte) (*Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	m := &Message{Method: root.Get("method").String()}
	if id := root.Get("id"); id.Exists() {
		if id.Type != gjson.Number {
			return nil, fmt.Errorf("%w: non-numeric id %s", ErrMalformed, id.Raw)
		}
		m.ID = id.Int()
		m.HasID = true
	}
	if p := root.Get("params"); p.Exists() {
		m.Params = json.RawMessage(p.Raw)
	}
	if r := root.Get("result"); r.Exists() {
		m.Result = json.RawMessage(r.Raw)
	}
	if e := root.Get("error"); e.Exists() {
		m.Error = &RPCError{
			Code:    int(e.Get("code").Int()),
			Message: e.Get("message").String(),
			Data:    e.Get("data").String(),
		}
	}
	if !m.HasID && m.Method == "" {
		return nil, fmt.Errorf("%w: neither id nor method", ErrMalformed)
	}
	return m, nil
}
