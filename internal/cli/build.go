package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/deploy-manager/internal/plan"
	"github.com/pandeptwidyaop/deploy-manager/internal/session"
)

type buildFlags struct {
	clear    bool
	checkout string
	noBackup bool
	dryRun   bool
	tab      string
}

func (a *app) buildCommand() *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build NAME",
		Short: "Pull, install and deploy an instance",
		Long: `build fetches the repository status of the instance, applies the options,
prints the commands that will run and submits the build. The command waits for
the job and prints its output (or its commands with --tab commands).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, args[0], f)
		},
	}

	cmd.Flags().BoolVar(&f.clear, "clear", false, "discard local changes before pulling")
	cmd.Flags().StringVar(&f.checkout, "checkout", "", "branch to check out before pulling")
	cmd.Flags().BoolVar(&f.noBackup, "no-backup", false, "do not move the current web root to the backups directory")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the commands without submitting")
	cmd.Flags().StringVar(&f.tab, "tab", "output", "part of the result to print: output or commands")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, name string, f buildFlags) error {
	tab, err := session.ParseTab(f.tab)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := a.client()
	out := cmd.OutOrStdout()

	inst, err := client.GetInstance(ctx, name)
	if err != nil {
		return err
	}

	h := newHost()
	s := session.NewBuildSession(client, inst.InstanceDescriptor, append(h.options(), session.WithClock(a.now))...)
	defer s.Close()

	s.Open(ctx)
	st, err := h.wait(ctx, s.State, session.StateFetching)
	if err != nil {
		return err
	}
	if st == session.StateFailed {
		return s.Snapshot().Err
	}

	snap := s.Snapshot()
	printStatus(out, snap)

	if f.checkout != "" {
		if err := s.SetCheckoutBranch(f.checkout); err != nil {
			return err
		}
	}
	if f.clear {
		if err := s.SetClear(true); err != nil {
			return err
		}
	}
	if f.noBackup && inst.HasBackups() {
		if err := s.SetBackup(false); err != nil {
			return err
		}
	}

	snap = s.Snapshot()
	_, _ = fmt.Fprintln(out, "\nCommands:")
	printPlan(out, snap.Preview)
	if f.dryRun {
		return nil
	}

	if err := s.Submit(ctx); err != nil {
		return err
	}
	st, err = h.wait(ctx, s.State, session.StateSubmitting)
	if err != nil {
		return err
	}
	if st != session.StateCompleted {
		return s.Snapshot().Err
	}
	if err := s.SelectTab(tab); err != nil {
		return err
	}

	return printResult(out, s.Snapshot().Result)
}

func printStatus(out io.Writer, snap session.BuildSnapshot) {
	if snap.Details == nil {
		return
	}
	branch := snap.Details.CurrentBranch
	if branch == "" {
		branch = "(detached)"
	}
	_, _ = fmt.Fprintf(out, "Branch: %s\n", branch)
	if len(snap.Details.AvailableBranches) > 0 {
		_, _ = fmt.Fprintf(out, "Available: %v\n", snap.Details.AvailableBranches)
	}
	if snap.Details.Status != "" {
		_, _ = fmt.Fprintf(out, "\n%s", snap.Details.Status)
	}
}

func printPlan(out io.Writer, p plan.Plan) {
	for _, step := range p {
		_, _ = fmt.Fprintf(out, "  %s\n", step)
	}
}

func printResult(out io.Writer, r *session.ResultView) error {
	if r == nil {
		return nil
	}
	title := "Output"
	if r.Tab == session.TabCommands {
		title = "Commands"
	}
	_, _ = fmt.Fprintf(out, "\n%s:\n", title)
	_, err := io.WriteString(out, r.Text())
	return err
}
