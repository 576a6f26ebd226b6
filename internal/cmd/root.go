// Package cmd assembles the jaildash command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"jaildash/internal/cmd/app"
	"jaildash/internal/cmd/console"
	"jaildash/internal/cmd/ignoreip"
	"jaildash/internal/cmd/jails"
	"jaildash/internal/cmd/login"
	"jaildash/internal/config"
)

// NewRoot builds the root command. Without a subcommand it opens the
// dashboard.
func NewRoot(opt *app.Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "jaildash",
		Short:         "Operator console for fail2ban jails",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return console.Run(cmd.Context(), opt)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opt.ConfigPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&opt.Addr, "addr", "", "server address, overrides server.addr")
	pf.StringVar(&opt.LogLevel, "log-level", "", "log level, overrides log.level")

	root.AddCommand(console.Command(opt), login.Command(opt), login.LogoutCommand(opt), ignoreip.Command(opt))
	root.AddCommand(jails.Commands(opt)...)
	return root
}
