package cmds

import (
	"fmt"

	"github.com/go-go-golems/topicsync/pkg/hashcodec"
	"github.com/spf13/cobra"
)

func newShareCommand(s *rootSettings) *cobra.Command {
	var noCheck bool
	cmd := &cobra.Command{
		Use:   "share TOPIC...",
		Short: "Print the share URL of a topic selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selection := args
			if !noCheck {
				reg, _, err := s.loadRegistry(cmd.Context())
				if err != nil {
					return err
				}
				selection = nil
				for _, t := range args {
					if err := reg.Select(t); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s\n", err)
						continue
					}
					selection = append(selection, t)
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), hashcodec.ShareURL(s.BaseURL, selection))
			return err
		},
	}
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "skip validating topics against the config")
	return cmd
}
