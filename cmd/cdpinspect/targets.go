package main

import (
	"fmt"
	"text/tabwriter"

	"cdpinspect/internal/cdp"
	"cdpinspect/pkg/domain"

	"github.com/spf13/cobra"
)

func newTargetsCmd(opts *globalOptions) *cobra.Command {
	var pagesOnly bool

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "列出调试端点上的目标",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ts, err := svc.ListTargets(cmd.Context())
			if err != nil {
				return err
			}
			if pagesOnly {
				ts = cdp.Pages(ts)
			}
			if opts.url != "" {
				ts = cdp.FilterURL(ts, opts.url)
			}
			return printTargets(cmd, ts)
		},
	}

	cmd.Flags().BoolVar(&pagesOnly, "pages", false, "只显示页面目标")
	return cmd
}

func printTargets(cmd *cobra.Command, ts []domain.TargetInfo) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTITLE\tURL")
	for _, t := range ts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Type, t.Title, t.URL)
	}
	return w.Flush()
}
