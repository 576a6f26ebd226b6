// Package ignoreip implements the ignoreip subcommands.
package ignoreip

import (
	"context"

	"github.com/spf13/cobra"

	"jaildash/internal/cmd/app"
	"jaildash/internal/dashboard"
	"jaildash/internal/textview"
)

func Command(opt *app.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignoreip",
		Short: "Show or edit the addresses that are never banned",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the ignoreIP list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opt, func(ctx context.Context, ctl *dashboard.Controller, _ *textview.View) error {
					return ctl.LoadIgnoreIPs(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "add <ip|cidr>...",
			Short: "Add entries and save the list",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return edit(cmd, opt, func(ctl *dashboard.Controller) error {
					for _, ip := range args {
						if err := ctl.AddIgnoreIP(ip); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <ip|cidr>...",
			Short: "Remove entries and save the list",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return edit(cmd, opt, func(ctl *dashboard.Controller) error {
					for _, ip := range args {
						ctl.RemoveIgnoreIP(ip)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func run(cmd *cobra.Command, opt *app.Options, fn func(context.Context, *dashboard.Controller, *textview.View) error) error {
	a, err := app.Open(opt, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), fn)
}

// edit loads the server list, applies change locally, saves the whole list
// and prints the result. Nothing is saved when change fails.
func edit(cmd *cobra.Command, opt *app.Options, change func(*dashboard.Controller) error) error {
	return run(cmd, opt, func(ctx context.Context, ctl *dashboard.Controller, view *textview.View) error {
		view.SetQuiet(true)
		if err := ctl.LoadIgnoreIPs(ctx); err != nil {
			return err
		}
		if err := change(ctl); err != nil {
			return err
		}
		if err := ctl.SaveIgnoreIPs(ctx); err != nil {
			return err
		}
		view.SetQuiet(false)
		view.ShowIgnoreIPs(ctl.IgnoreIPs())
		return nil
	})
}
