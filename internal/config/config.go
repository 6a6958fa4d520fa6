package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cdpinspect/pkg/domain"
)

// DevTools 调试端点配置
type DevTools struct {
	URL         string        `yaml:"url"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	EvalTimeout time.Duration `yaml:"evalTimeout"`
}

// Sqlite 记录库配置
type Sqlite struct {
	Enabled bool   `yaml:"enabled"`
	Dsn     string `yaml:"dsn"`
	Prefix  string `yaml:"prefix"`
}

// Log 日志配置
type Log struct {
	Level  string   `yaml:"level"`
	Writer []string `yaml:"writer"`
	File   string   `yaml:"file"`
}

// Watch 事件监听默认值
type Watch struct {
	Duration   time.Duration `yaml:"duration"`
	Categories []string      `yaml:"categories"`
	MinLevel   string        `yaml:"minLevel"`
}

// Config 配置文件结构体
type Config struct {
	Version  string         `yaml:"version"`
	DevTools DevTools       `yaml:"devtools"`
	Sqlite   Sqlite         `yaml:"sqlite"`
	Log      Log            `yaml:"log"`
	Watch    Watch          `yaml:"watch"`
	Checks   []domain.Check `yaml:"checks"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Version: "1.0.0",
		DevTools: DevTools{
			URL:         "http://127.0.0.1:9222",
			DialTimeout: 5 * time.Second,
			EvalTimeout: 2 * time.Second,
		},
		Sqlite: Sqlite{
			Dsn:    "db.sqlite3",
			Prefix: "cdpinspect_",
		},
		Log: Log{
			Level:  "info",
			Writer: []string{"console"},
			File:   "cdpinspect.log",
		},
		Watch: Watch{
			Duration: 5 * time.Second,
			MinLevel: "info",
		},
	}
}

// Load 读取 YAML 配置，未出现的字段保留默认值
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置项
func (c *Config) Validate() error {
	if c.DevTools.URL == "" {
		return fmt.Errorf("devtools.url is required")
	}
	if c.DevTools.DialTimeout < 0 || c.DevTools.EvalTimeout < 0 {
		return fmt.Errorf("devtools timeouts must not be negative")
	}
	for i, ck := range c.Checks {
		if ck.Name == "" || ck.Expression == "" {
			return fmt.Errorf("checks[%d]: name and expression are required", i)
		}
	}
	return nil
}
