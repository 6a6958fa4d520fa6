package rules

import (
	"path"
	"regexp"
	"strings"
	"sync"

	"cdpinspect/pkg/domain"
)

// Condition 单个匹配条件
type Condition struct {
	Type    string   `json:"type" yaml:"type"`       // category / severity / method / text
	Mode    string   `json:"mode" yaml:"mode"`       // text: contains / prefix / exact / regex / glob
	Pattern string   `json:"pattern" yaml:"pattern"` // severity: 最低级别
	Values  []string `json:"values" yaml:"values"`
}

// Filter 事件过滤规则，三组条件同时生效
type Filter struct {
	AllOf  []Condition `json:"allOf" yaml:"allOf"`
	AnyOf  []Condition `json:"anyOf" yaml:"anyOf"`
	NoneOf []Condition `json:"noneOf" yaml:"noneOf"`
}

// Empty 是否未设置任何条件
func (f Filter) Empty() bool {
	return len(f.AllOf) == 0 && len(f.AnyOf) == 0 && len(f.NoneOf) == 0
}

// Engine 事件过滤引擎
type Engine struct {
	mu sync.RWMutex
	f  Filter
}

// New 创建过滤引擎
func New(f Filter) *Engine { return &Engine{f: f} }

// Update 替换过滤规则
func (e *Engine) Update(f Filter) {
	e.mu.Lock()
	e.f = f
	e.mu.Unlock()
}

// Match 判断事件是否满足规则；空规则匹配一切
func (e *Engine) Match(ev domain.Event) bool {
	if e == nil {
		return true
	}
	e.mu.RLock()
	f := e.f
	e.mu.RUnlock()
	ok := true
	if len(f.AllOf) > 0 {
		ok = ok && allOf(ev, f.AllOf)
	}
	if len(f.AnyOf) > 0 {
		ok = ok && anyOf(ev, f.AnyOf)
	}
	if len(f.NoneOf) > 0 {
		ok = ok && noneOf(ev, f.NoneOf)
	}
	return ok
}

// Predicate 返回可直接用于收集窗口的过滤函数
func (e *Engine) Predicate() func(domain.Event) bool {
	return e.Match
}

func allOf(ev domain.Event, cs []Condition) bool {
	for i := range cs {
		if !cond(ev, cs[i]) {
			return false
		}
	}
	return true
}

func anyOf(ev domain.Event, cs []Condition) bool {
	for i := range cs {
		if cond(ev, cs[i]) {
			return true
		}
	}
	return false
}

func noneOf(ev domain.Event, cs []Condition) bool { return !anyOf(ev, cs) }

func cond(ev domain.Event, c Condition) bool {
	switch c.Type {
	case "category":
		return oneOf(string(ev.Category), c.Values)
	case "method":
		if c.Pattern != "" {
			return text(ev.Method, c.Mode, c.Pattern)
		}
		return oneOf(ev.Method, c.Values)
	case "severity":
		if c.Pattern != "" {
			return ev.Severity.AtLeast(domain.ParseSeverity(c.Pattern))
		}
		return oneOf(ev.Severity.String(), c.Values)
	case "text":
		if text(ev.Text, c.Mode, c.Pattern) {
			return true
		}
		return ev.Detail != "" && text(ev.Detail, c.Mode, c.Pattern)
	default:
		return false
	}
}

func oneOf(v string, values []string) bool {
	for _, want := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func text(s, mode, pattern string) bool {
	switch mode {
	case "prefix":
		return strings.HasPrefix(s, pattern)
	case "exact":
		return s == pattern
	case "regex":
		return matchRegex(s, pattern)
	case "glob":
		ok, err := path.Match(pattern, s)
		return err == nil && ok
	default:
		return strings.Contains(s, pattern)
	}
}

type regexpCache struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}

// Get 编译并缓存正则表达式
func (c *regexpCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.m[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.m[pattern] = re
	c.mu.Unlock()
	return re, nil
}

var regexCache = &regexpCache{m: make(map[string]*regexp.Regexp)}

func matchRegex(s, pattern string) bool {
	re, err := regexCache.Get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// Build 由命令行风格的参数构造过滤规则
func Build(categories []string, minLevel string, grep string) Filter {
	var f Filter
	if len(categories) > 0 {
		f.AllOf = append(f.AllOf, Condition{Type: "category", Values: categories})
	}
	if minLevel != "" && domain.ParseSeverity(minLevel) > domain.SeverityInfo {
		f.AllOf = append(f.AllOf, Condition{Type: "severity", Pattern: minLevel})
	}
	if grep != "" {
		f.AllOf = append(f.AllOf, Condition{Type: "text", Mode: "regex", Pattern: grep})
	}
	return f
}
