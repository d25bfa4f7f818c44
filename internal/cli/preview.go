package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/deploy-manager/internal/preview"
)

func (a *app) previewCommand() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "preview NAME",
		Short: "Show the build commands an edited record would run",
		Long: `preview reads the instance record once, applies the --set edits on top of it
and prints the build commands with default options. Nothing is saved.

Keys: path, build, web_root, backups, git.checkout, git.submodules,
node.force_install, node.nvm, node.script.`,
		Example: "  deployctl preview portal --set node.script=build:prod --set git.submodules=true",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Parse first so a typo does not cost a request.
			var patch preview.DescriptorPatch
			for _, s := range sets {
				p, err := preview.ParseAssignment(s)
				if err != nil {
					return err
				}
				patch = patch.Combine(p)
			}

			inst, err := a.client().GetInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			ed := preview.NewEditor(inst.InstanceDescriptor)
			ed.Edit(patch)

			out := cmd.OutOrStdout()
			if ed.Dirty() {
				_, _ = fmt.Fprintln(out, "Commands with unsaved edits:")
			} else {
				_, _ = fmt.Fprintln(out, "Commands:")
			}
			printPlan(out, ed.Preview(a.now()))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "edit a field, key=value (repeatable)")
	return cmd
}
