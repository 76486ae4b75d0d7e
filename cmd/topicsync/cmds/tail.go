package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/topicsync/pkg/bus"
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newTailCommand(s *rootSettings) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print shown messages to stdout as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ps := bus.NewPubSub(s.logger)
			defer func() { _ = ps.Close() }()

			msgs, err := ps.Subscribe(ctx, bus.TopicEvents)
			if err != nil {
				return errors.Wrap(err, "subscribe events")
			}
			a, err := s.newApp(ctx, ps)
			if err != nil {
				return err
			}

			pr := &tailPrinter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), json: asJSON}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return pr.run(gctx, msgs) })
			a.start(gctx, g)
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print every event envelope as one JSON line")
	return cmd
}

// tailPrinter writes controller events as text. Messages of hidden topics
// are skipped the way the message log hides them.
type tailPrinter struct {
	out        io.Writer
	errOut     io.Writer
	json       bool
	visibility map[string]bool
}

func (p *tailPrinter) run(ctx context.Context, msgs <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			err := p.handle(msg.Payload)
			msg.Ack()
			if err != nil {
				return err
			}
		}
	}
}

func (p *tailPrinter) handle(payload []byte) error {
	if p.json {
		_, err := fmt.Fprintln(p.out, string(payload))
		return errors.Wrap(err, "write event")
	}
	env, err := bus.ParseEnvelope(payload)
	if err != nil {
		return err
	}

	switch env.Type {
	case bus.TypeSelectionChanged:
		var v syncctl.SelectionChanged
		if err := env.Decode(&v); err != nil {
			return err
		}
		p.visibility = v.Visibility
		fmt.Fprintf(p.errOut, "# selection %v  share %s\n", v.Selection, v.ShareURL)
	case bus.TypeMessageAppended:
		var v syncctl.MessageAppended
		if err := env.Decode(&v); err != nil {
			return err
		}
		if !v.Message.Shown(p.visibility) {
			return nil
		}
		_, err := fmt.Fprintln(p.out, v.Message.String())
		return errors.Wrap(err, "write message")
	case bus.TypeSubscriptionResult:
		var v protocol.SubscriptionResult
		if err := env.Decode(&v); err != nil {
			return err
		}
		if v.Ok() {
			fmt.Fprintf(p.errOut, "# subscribed %v: %s\n", v.Topics, v.Result)
		} else {
			fmt.Fprintf(p.errOut, "# subscribe failed (%d): %s\n", v.Error.Code, v.Error.Message)
		}
	case bus.TypeChannelState:
		var v syncctl.ChannelState
		if err := env.Decode(&v); err != nil {
			return err
		}
		fmt.Fprintf(p.errOut, "# channel %s (generation %d)\n", v.State, v.Generation)
	case bus.TypeNotice:
		var v syncctl.Notice
		if err := env.Decode(&v); err != nil {
			return err
		}
		fmt.Fprintf(p.errOut, "# %s\n", v.Message)
	}
	return nil
}
