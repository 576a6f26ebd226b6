// Package console runs the interactive Bubble Tea dashboard.
package console

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"jaildash/internal/cmd/app"
	"jaildash/internal/tui"
)

func Command(opt *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), opt)
		},
	}
}

// Run owns the terminal until the operator quits. Logs go to log.file since
// the alternate screen owns stdout and stderr.
func Run(ctx context.Context, opt *app.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(opt, nil, true)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := tui.NewBridge()
	guard, ctl := a.Session(bridge, bridge)
	defer guard.Stop()
	defer ctl.Stop()

	m := tui.New(tui.Options{
		Context:    ctx,
		Controller: ctl,
		Guard:      guard,
		Bridge:     bridge,
		Addr:       a.Config.Server.Addr,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	bridge.Attach(p)

	a.Logger.Info("dashboard started", "addr", a.Config.Server.Addr)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
