package rules

import (
	"testing"

	"cdpinspect/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func ev(cat domain.Category, sev domain.Severity, text string) domain.Event {
	return domain.Event{Method: "Runtime.consoleAPICalled", Category: cat, Severity: sev, Text: text}
}

func TestEmptyFilterMatchesAll(t *testing.T) {
	e := New(Filter{})
	assert.True(t, e.Match(ev(domain.CategoryOther, domain.SeverityInfo, "")))

	var nilEngine *Engine
	assert.True(t, nilEngine.Match(ev(domain.CategoryLog, domain.SeverityError, "x")))
}

func TestConditions(t *testing.T) {
	cases := []struct {
		name string
		c    Condition
		ev   domain.Event
		want bool
	}{
		{"category hit", Condition{Type: "category", Values: []string{"console"}}, ev(domain.CategoryConsole, 0, ""), true},
		{"category miss", Condition{Type: "category", Values: []string{"log", "exception"}}, ev(domain.CategoryConsole, 0, ""), false},
		{"severity min", Condition{Type: "severity", Pattern: "warning"}, ev(domain.CategoryLog, domain.SeverityError, ""), true},
		{"severity below", Condition{Type: "severity", Pattern: "warning"}, ev(domain.CategoryLog, domain.SeverityInfo, ""), false},
		{"severity set", Condition{Type: "severity", Values: []string{"info"}}, ev(domain.CategoryLog, domain.SeverityInfo, ""), true},
		{"text contains", Condition{Type: "text", Pattern: "GLTF"}, ev(domain.CategoryConsole, 0, "GLTFLoader ready"), true},
		{"text prefix", Condition{Type: "text", Mode: "prefix", Pattern: "✅"}, ev(domain.CategoryConsole, 0, "✅ loaded"), true},
		{"text exact miss", Condition{Type: "text", Mode: "exact", Pattern: "ready"}, ev(domain.CategoryConsole, 0, "ready!"), false},
		{"text regex", Condition{Type: "text", Mode: "regex", Pattern: `GL(TF|B)`}, ev(domain.CategoryConsole, 0, "loading GLB"), true},
		{"text bad regex", Condition{Type: "text", Mode: "regex", Pattern: `(`}, ev(domain.CategoryConsole, 0, "("), false},
		{"text glob", Condition{Type: "text", Mode: "glob", Pattern: "THREE*"}, ev(domain.CategoryConsole, 0, "THREE r160"), true},
		{"method values", Condition{Type: "method", Values: []string{"Log.entryAdded"}}, ev(domain.CategoryConsole, 0, ""), false},
		{"method prefix", Condition{Type: "method", Mode: "prefix", Pattern: "Runtime."}, ev(domain.CategoryConsole, 0, ""), true},
		{"unknown type", Condition{Type: "url"}, ev(domain.CategoryConsole, 0, ""), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, New(Filter{AllOf: []Condition{tc.c}}).Match(tc.ev))
		})
	}
}

func TestTextMatchesDetail(t *testing.T) {
	e := New(Filter{AllOf: []Condition{{Type: "text", Pattern: "scene is undefined"}}})
	exc := domain.Event{Category: domain.CategoryException, Severity: domain.SeverityError,
		Text: "Uncaught TypeError", Detail: "TypeError: scene is undefined"}
	assert.True(t, e.Match(exc))
}

func TestAnyNoneOf(t *testing.T) {
	e := New(Filter{
		AnyOf:  []Condition{{Type: "category", Values: []string{"console"}}, {Type: "category", Values: []string{"exception"}}},
		NoneOf: []Condition{{Type: "text", Pattern: "noise"}},
	})
	assert.True(t, e.Match(ev(domain.CategoryException, domain.SeverityError, "boom")))
	assert.False(t, e.Match(ev(domain.CategoryConsole, domain.SeverityInfo, "noise here")))
	assert.False(t, e.Match(ev(domain.CategoryLog, domain.SeverityInfo, "x")))
}

func TestBuildAndUpdate(t *testing.T) {
	e := New(Build([]string{"console", "log"}, "warning", "GL(TF|B)"))
	assert.True(t, e.Match(ev(domain.CategoryConsole, domain.SeverityWarning, "GLB missing")))
	assert.False(t, e.Match(ev(domain.CategoryConsole, domain.SeverityInfo, "GLB missing")))
	assert.False(t, e.Match(ev(domain.CategoryException, domain.SeverityError, "GLB missing")))

	e.Update(Filter{})
	assert.True(t, e.Predicate()(ev(domain.CategoryException, domain.SeverityInfo, "")))

	assert.True(t, Build(nil, "info", "").Empty())
}
