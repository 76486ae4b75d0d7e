package cmds

import (
	"fmt"

	"github.com/go-go-golems/topicsync/pkg/snippets"
	"github.com/spf13/cobra"
)

func newSnippetCommand(s *rootSettings) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "snippet TOPIC...",
		Short: "Print a curl or fetch example that subscribes to the topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := snippets.Render(snippets.Kind(kind), s.snippetOptions(), args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(snippets.KindCurl), "snippet kind (curl, fetch)")
	return cmd
}
