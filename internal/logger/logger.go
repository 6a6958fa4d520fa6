package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一日志接口，参数以 key/value 成对传入
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志输出配置
type Options struct {
	Level   string
	Writer  []string // console / file
	File    string
	Console io.Writer
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New 根据配置创建基于 zerolog 的日志实例
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writer {
		switch strings.ToLower(w) {
		case "console":
			out := opts.Console
			if out == nil {
				out = os.Stderr
			}
			writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"})
		case "file":
			name := opts.File
			if name == "" {
				name = "cdpinspect.log"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   name,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
			})
		}
	}
	if len(writers) == 0 {
		return NewNop()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

// NewWithZerolog 包装已有的 zerolog 实例
func NewWithZerolog(zl zerolog.Logger) Logger {
	return &zeroLogger{zl: zl}
}

// NewNop 返回丢弃所有输出的日志实例
func NewNop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func (l *zeroLogger) Debug(msg string, kv ...any) { l.zl.Debug().Fields(kv).Msg(msg) }
func (l *zeroLogger) Info(msg string, kv ...any)  { l.zl.Info().Fields(kv).Msg(msg) }
func (l *zeroLogger) Warn(msg string, kv ...any)  { l.zl.Warn().Fields(kv).Msg(msg) }
func (l *zeroLogger) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }

func (l *zeroLogger) Err(err error, msg string, kv ...any) {
	l.zl.Error().Err(err).Fields(kv).Msg(msg)
}

func (l *zeroLogger) With(kv ...any) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(kv).Logger()}
}
