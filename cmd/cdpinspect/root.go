package main

import (
	"context"
	"fmt"

	"cdpinspect/internal/config"
	"cdpinspect/internal/logger"
	"cdpinspect/pkg/api"
	"cdpinspect/pkg/domain"

	"github.com/spf13/cobra"
)

// globalOptions 全局命令行参数
type globalOptions struct {
	devtools   string
	configPath string
	url        string
	fallback   bool
	record     bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "cdpinspect",
		Short:         "通过调试协议检查远程页面",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.devtools, "devtools", "", "调试端点地址，如 http://127.0.0.1:9222")
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML 配置文件")
	pf.StringVar(&opts.url, "url", "", "按 URL 子串选择页面目标")
	pf.BoolVar(&opts.fallback, "fallback", false, "无匹配目标时退回第一个页面")
	pf.BoolVar(&opts.record, "record", false, "将事件与求值结果写入 sqlite")
	pf.StringVar(&opts.logLevel, "log-level", "", "日志级别 debug/info/warn/error")

	cmd.AddCommand(newTargetsCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	return cmd
}

// load 读取配置并应用命令行覆盖项
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.devtools != "" {
		cfg.DevTools.URL = o.devtools
	}
	if o.record {
		cfg.Sqlite.Enabled = true
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// newService 创建服务实例，日志写入命令的错误输出
func (o *globalOptions) newService(cmd *cobra.Command) (api.Service, *config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writer:  cfg.Log.Writer,
		File:    cfg.Log.File,
		Console: cmd.ErrOrStderr(),
	})
	svc, err := api.NewService(l, cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// attach 选择目标、建立会话并启用给定能力
func (o *globalOptions) attach(ctx context.Context, svc api.Service, capabilities ...string) (domain.SessionID, error) {
	target, err := svc.SelectTarget(ctx, o.url, o.fallback)
	if err != nil {
		return "", err
	}
	id, err := svc.Attach(ctx, target)
	if err != nil {
		return "", err
	}
	if err := svc.Enable(ctx, id, capabilities...); err != nil {
		return "", fmt.Errorf("enable %v: %w", capabilities, err)
	}
	return id, nil
}
