package cmds

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/go-go-golems/topicsync/pkg/tui"
	"github.com/go-go-golems/topicsync/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCommand(s *rootSettings) *cobra.Command {
	var altScreen bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the event stream in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ps := bus.NewPubSub(s.logger)
			defer func() { _ = ps.Close() }()

			a, err := s.newApp(ctx, ps)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			model := models.NewRootModel(a.Session.ID(), func(act syncctl.Action) error {
				return syncctl.PublishAction(ps, act)
			})
			opts := []tea.ProgramOption{tea.WithContext(gctx)}
			if altScreen {
				opts = append(opts, tea.WithAltScreen())
			}
			p := tea.NewProgram(model, opts...)

			fwd := &tui.Forwarder{Sub: ps, Send: p.Send, Logger: s.logger}
			if err := fwd.Subscribe(gctx); err != nil {
				return err
			}
			g.Go(func() error { return fwd.Run(gctx) })
			g.Go(func() error { return a.Controller.ServeActions(gctx, ps) })
			a.start(gctx, g)
			g.Go(func() error {
				defer cancel()
				_, err := p.Run()
				if errors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				return err
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "use the terminal's alternate screen")
	return cmd
}
