// Package jails implements the one-shot jail and ban subcommands.
package jails

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"jaildash/internal/cmd/app"
	"jaildash/internal/dashboard"
	"jaildash/internal/textview"
)

type action func(context.Context, *dashboard.Controller, *textview.View) error

// run opens the app and hands fn a verified session.
func run(cmd *cobra.Command, opt *app.Options, fn action) error {
	a, err := app.Open(opt, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), fn)
}

// Commands returns jails, banned, ban and unban.
func Commands(opt *app.Options) []*cobra.Command {
	return []*cobra.Command{jailsCommand(opt), bannedCommand(opt), banCommand(opt), unbanCommand(opt)}
}

func jailsCommand(opt *app.Options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "jails",
		Short: "List active jails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opt, func(ctx context.Context, ctl *dashboard.Controller, _ *textview.View) error {
				if all {
					_, err := ctl.LoadJailConfigs(ctx)
					return err
				}
				_, err := ctl.RefreshJails(ctx)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every jail configuration, enabled or not")
	return cmd
}

func bannedCommand(opt *app.Options) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "banned <jail>",
		Short: "List the addresses banned in a jail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opt, func(ctx context.Context, ctl *dashboard.Controller, _ *textview.View) error {
				ctl.SetSearch(search)
				return ctl.ViewBannedIPs(ctx, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show entries containing this text (address or country)")
	return cmd
}

func banCommand(opt *app.Options) *cobra.Command {
	var jail string
	cmd := &cobra.Command{
		Use:   "ban <ip>",
		Short: "Ban an address or CIDR range",
		Long:  "Ban an address or CIDR range. Without --jail the first active jail is used.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opt, func(ctx context.Context, ctl *dashboard.Controller, _ *textview.View) error {
				return ctl.Ban(ctx, strings.TrimSpace(jail), args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&jail, "jail", "j", "", "jail to ban in")
	return cmd
}

func unbanCommand(opt *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "unban <jail> <ip>",
		Short: "Lift a ban",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opt, func(ctx context.Context, ctl *dashboard.Controller, _ *textview.View) error {
				return ctl.Unban(ctx, args[0], args[1])
			})
		},
	}
}
