package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) restCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rest",
		Short: "Inspect and remove backend service instances",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backend service instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.client().ListRest(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(list))
			for name := range list {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tPATH\tSERVICES")
			for _, name := range names {
				inst := list[name]
				services := strings.Join(inst.ServiceNames(), ",")
				if services == "" {
					services = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, inst.Path, services)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Print a backend service record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.client().GetRest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inst)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status NAME",
		Short: "Show the repository state and supervisord programs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client().RestStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Branch: %s\n", st.CurrentBranch)
			_, _ = fmt.Fprintf(out, "Branches: %s\n", strings.Join(st.AvailableBranches, ", "))
			_, _ = fmt.Fprintf(out, "Programs: %s\n", strings.Join(st.Programs, ", "))
			_, _ = fmt.Fprint(out, st.Status)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a backend service instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteRest(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}
