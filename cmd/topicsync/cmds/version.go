package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set with -ldflags "-X github.com/go-go-golems/topicsync/cmd/topicsync/cmds.version=..."
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "topicsync %s\n", version)
			return err
		},
	}
}
