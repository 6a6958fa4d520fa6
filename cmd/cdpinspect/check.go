package main

import (
	"fmt"
	"strings"

	"cdpinspect/internal/probe"
	"cdpinspect/pkg/domain"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var exprs []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "依次执行配置中的检查表达式",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			checks := append([]domain.Check(nil), cfg.Checks...)
			for _, e := range exprs {
				c, err := parseCheck(e)
				if err != nil {
					return err
				}
				checks = append(checks, c)
			}
			if len(checks) == 0 {
				return fmt.Errorf("no checks configured, use --expr name=js or a config file")
			}

			ctx := cmd.Context()
			id, err := opts.attach(ctx, svc, "Runtime")
			if err != nil {
				return err
			}
			results, err := svc.RunChecks(ctx, id, checks)
			if err != nil {
				return err
			}
			printChecks(cmd, results)
			if n := probe.Failed(results); n > 0 {
				return fmt.Errorf("%d of %d checks failed", n, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&exprs, "expr", nil, "追加检查，格式 name=expression，可重复")
	return cmd
}

// parseCheck 解析 name=expression
func parseCheck(s string) (domain.Check, error) {
	name, expr, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(expr) == "" {
		return domain.Check{}, fmt.Errorf("invalid check %q, want name=expression", s)
	}
	return domain.Check{Name: name, Expression: expr}, nil
}

func printChecks(cmd *cobra.Command, results []domain.CheckResult) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "✗ %s: %v\n", r.Check.Name, r.Err)
		case r.Result.Err() != nil:
			fmt.Fprintf(out, "✗ %s: %s\n", r.Check.Name, r.Result.Err())
		default:
			fmt.Fprintf(out, "✓ %s: %s\n", r.Check.Name, r.Result)
		}
	}
}
