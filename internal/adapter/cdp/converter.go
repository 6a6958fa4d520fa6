package cdp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cdpinspect/pkg/domain"

	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"
)

// ToResult 将 Runtime.evaluate 的响应结果转换为中立 Result 模型
func ToResult(raw []byte) (*domain.Result, error) {
	var reply runtime.EvaluateReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode evaluate reply: %w", err)
	}
	res := fromRemoteObject(reply.Result)
	if ex := reply.ExceptionDetails; ex != nil {
		evalErr := &domain.EvaluationError{
			Text:   ex.Text,
			Line:   ex.LineNumber,
			Column: ex.ColumnNumber,
		}
		if ex.Exception != nil && ex.Exception.Description != nil {
			evalErr.Description = *ex.Exception.Description
		}
		res.Exception = evalErr
	}
	return res, nil
}

func fromRemoteObject(obj runtime.RemoteObject) *domain.Result {
	res := &domain.Result{Type: obj.Type}
	if obj.Subtype != nil {
		res.Subtype = *obj.Subtype
	}
	if len(obj.Value) > 0 {
		res.Value = append(json.RawMessage(nil), obj.Value...)
	}
	if obj.Description != nil {
		res.Description = *obj.Description
	}
	if obj.UnserializableValue != nil {
		res.Unserializable = string(*obj.UnserializableValue)
	}
	return res
}

// 事件方法名与分类
const (
	MethodConsoleAPICalled = "Runtime.consoleAPICalled"
	MethodExceptionThrown  = "Runtime.exceptionThrown"
	MethodMessageAdded     = "Console.messageAdded"
	MethodEntryAdded       = "Log.entryAdded"
)

// ToEvent 将推送事件转换为中立 Event 模型，保留严重级别
func ToEvent(method string, params []byte, at time.Time) domain.Event {
	p := gjson.ParseBytes(params)
	ev := domain.Event{
		Method:    method,
		Timestamp: at,
		Params:    append(json.RawMessage(nil), params...),
		Category:  domain.CategoryOther,
		Severity:  domain.SeverityInfo,
	}
	switch method {
	case MethodConsoleAPICalled:
		ev.Category = domain.CategoryConsole
		ev.Severity = domain.ParseSeverity(p.Get("type").String())
		ev.Text = joinArgs(p.Get("args"))
		ev.Source = callFrameSource(p.Get("stackTrace.callFrames.0"))
	case MethodMessageAdded:
		msg := p.Get("message")
		ev.Category = domain.CategoryConsole
		ev.Severity = domain.ParseSeverity(msg.Get("level").String())
		ev.Text = msg.Get("text").String()
		ev.Source = lineSource(msg.Get("url").String(), msg.Get("line").Int())
	case MethodEntryAdded:
		entry := p.Get("entry")
		ev.Category = domain.CategoryLog
		ev.Severity = domain.ParseSeverity(entry.Get("level").String())
		ev.Text = entry.Get("text").String()
		ev.Source = lineSource(entry.Get("url").String(), entry.Get("lineNumber").Int())
		if args := entry.Get("args"); args.Exists() {
			ev.Detail = joinArgs(args)
		}
	case MethodExceptionThrown:
		ex := p.Get("exceptionDetails")
		ev.Category = domain.CategoryException
		ev.Severity = domain.SeverityError
		ev.Text = ex.Get("text").String()
		ev.Detail = ex.Get("exception.description").String()
		ev.Source = lineSource(ex.Get("url").String(), ex.Get("lineNumber").Int())
	}
	return ev
}

// joinArgs 取参数的值，缺失时依次退回不可序列化值、描述与类型
func joinArgs(args gjson.Result) string {
	var parts []string
	args.ForEach(func(_, arg gjson.Result) bool {
		switch {
		case arg.Get("value").Exists():
			parts = append(parts, arg.Get("value").String())
		case arg.Get("unserializableValue").Exists():
			parts = append(parts, arg.Get("unserializableValue").String())
		case arg.Get("description").Exists():
			parts = append(parts, arg.Get("description").String())
		default:
			parts = append(parts, arg.Get("type").String())
		}
		return true
	})
	return strings.Join(parts, " ")
}

func callFrameSource(frame gjson.Result) string {
	if !frame.Exists() {
		return ""
	}
	return lineSource(frame.Get("url").String(), frame.Get("lineNumber").Int())
}

func lineSource(url string, line int64) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", url, line)
}
