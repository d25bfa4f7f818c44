package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/deploy-manager/internal/version"
)

func (a *app) versionCommand() *cobra.Command {
	var clientOnly bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, version.String("deployctl"))
			if clientOnly {
				return nil
			}

			info, err := a.client().Version(cmd.Context())
			if err != nil {
				return fmt.Errorf("server version: %w", err)
			}
			_, _ = fmt.Fprintf(out, "server %s (commit %s, built %s)\n", info.Version, info.GitCommit, info.BuildTime)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clientOnly, "client", false, "only print the client version")
	return cmd
}
