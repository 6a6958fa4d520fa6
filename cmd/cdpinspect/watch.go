package main

import (
	"fmt"
	"time"

	"cdpinspect/internal/rules"
	"cdpinspect/pkg/domain"

	"github.com/spf13/cobra"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		duration   time.Duration
		categories []string
		level      string
		grep       string
		navigate   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "在一段时间内收集页面的控制台、日志与异常事件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !cmd.Flags().Changed("duration") {
				duration = cfg.Watch.Duration
			}
			if !cmd.Flags().Changed("category") {
				categories = cfg.Watch.Categories
			}
			if !cmd.Flags().Changed("level") {
				level = cfg.Watch.MinLevel
			}

			ctx := cmd.Context()
			id, err := opts.attach(ctx, svc, "Runtime", "Log")
			if err != nil {
				return err
			}
			ch, err := svc.Observe(ctx, id, duration, rules.Build(categories, level, grep))
			if err != nil {
				return err
			}
			if navigate != "" {
				if err := svc.Navigate(ctx, id, navigate); err != nil {
					return err
				}
			}

			n := 0
			for ev := range ch {
				printEvent(cmd, ev)
				n++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "-- %d events in %s\n", n, duration)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "收集时长")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "事件类别 console/log/exception/other")
	cmd.Flags().StringVar(&level, "level", "info", "最低级别 info/warning/error")
	cmd.Flags().StringVar(&grep, "grep", "", "按正则过滤事件文本")
	cmd.Flags().StringVar(&navigate, "navigate", "", "开始收集后导航到该地址")
	return cmd
}

func printEvent(cmd *cobra.Command, ev domain.Event) {
	line := fmt.Sprintf("%s [%s] %s: %s", ev.Timestamp.Format("15:04:05.000"), ev.Severity, ev.Category, ev.Text)
	if ev.Detail != "" && ev.Detail != ev.Text {
		line += " | " + ev.Detail
	}
	if ev.Source != "" {
		line += " (" + ev.Source + ")"
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}
