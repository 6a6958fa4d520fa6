package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newEvalCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <expr>...",
		Short: "在选中的页面中求值表达式",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			id, err := opts.attach(ctx, svc, "Runtime")
			if err != nil {
				return err
			}

			var errs []error
			for _, expr := range args {
				res, err := svc.Evaluate(ctx, id, expr)
				switch {
				case err != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s !! %v\n", expr, err)
					errs = append(errs, err)
				case res.Err() != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s !! %s\n", expr, res.Err())
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s => %s\n", expr, res)
				}
			}
			return errors.Join(errs...)
		},
	}
	return cmd
}
