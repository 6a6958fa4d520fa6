package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type SessionID string
type TargetID string

// TargetInfo 调试端点暴露的可检查目标
type TargetInfo struct {
	ID           TargetID `json:"id"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Description  string   `json:"description,omitempty"`
	WebSocketURL string   `json:"webSocketDebuggerUrl"`
}

// IsPage 是否为可检查的页面目标
func (t TargetInfo) IsPage() bool { return t.Type == "page" }

// Severity 事件严重级别
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// AtLeast 判断级别是否不低于 min
func (s Severity) AtLeast(min Severity) bool { return s >= min }

// ParseSeverity 将协议中的级别名称映射为 Severity
func ParseSeverity(level string) Severity {
	switch strings.ToLower(level) {
	case "error", "assert":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Category 事件分类
type Category string

const (
	CategoryConsole   Category = "console"
	CategoryLog       Category = "log"
	CategoryException Category = "exception"
	CategoryOther     Category = "other"
)

// Event 远端推送的诊断事件
type Event struct {
	Session   SessionID       `json:"session"`
	Method    string          `json:"method"`
	Category  Category        `json:"category"`
	Severity  Severity        `json:"severity"`
	Text      string          `json:"text"`
	Detail    string          `json:"detail,omitempty"`
	Source    string          `json:"source,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Result 表达式求值结果
type Result struct {
	Type           string           `json:"type"`
	Subtype        string           `json:"subtype,omitempty"`
	Value          json.RawMessage  `json:"value,omitempty"`
	Description    string           `json:"description,omitempty"`
	Unserializable string           `json:"unserializable,omitempty"`
	Exception      *EvaluationError `json:"exception,omitempty"`
}

// Err 返回远端求值抛出的异常，未抛出时为 nil
func (r *Result) Err() error {
	if r == nil || r.Exception == nil {
		return nil
	}
	return r.Exception
}

// HasValue 是否携带可序列化的值
func (r *Result) HasValue() bool {
	return r != nil && len(r.Value) > 0
}

// String 优先显示值，其次是不可序列化值、描述与类型
func (r *Result) String() string {
	if r == nil {
		return "unknown"
	}
	if r.Exception != nil {
		return r.Exception.Error()
	}
	if len(r.Value) > 0 {
		var s string
		if err := json.Unmarshal(r.Value, &s); err == nil {
			return s
		}
		return string(r.Value)
	}
	if r.Unserializable != "" {
		return r.Unserializable
	}
	if r.Type == "undefined" {
		return "undefined"
	}
	if r.Description != "" {
		return r.Description
	}
	if r.Type != "" {
		return r.Type
	}
	return "unknown"
}

// EvaluationError 远端表达式求值抛出的异常
type EvaluationError struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
}

func (e *EvaluationError) Error() string {
	if e.Description != "" {
		return e.Text + ": " + e.Description
	}
	return e.Text
}

// Check 一个具名的检查表达式
type Check struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// CheckResult 单项检查的执行结果
type CheckResult struct {
	Check    Check         `json:"check"`
	Result   *Result       `json:"result,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK 检查是否成功执行且未抛出异常
func (c CheckResult) OK() bool {
	return c.Err == nil && c.Result.Err() == nil
}
