package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/deploy-manager/internal/session"
)

type restoreFlags struct {
	backup        string
	backupCurrent bool
	tab           string
}

func (a *app) restoreCommand() *cobra.Command {
	var f restoreFlags

	cmd := &cobra.Command{
		Use:   "restore NAME",
		Short: "Replace the web root of an instance with a backup",
		Long: `restore lists the backups of the instance. With --backup it restores that
backup and prints the job result; without it the list is printed and nothing
is submitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRestore(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.backup, "backup", "", "backup to restore")
	cmd.Flags().BoolVar(&f.backupCurrent, "backup-current", false, "move the current web root to the backups directory first")
	cmd.Flags().StringVar(&f.tab, "tab", "output", "part of the result to print: output or commands")
	return cmd
}

func (a *app) runRestore(cmd *cobra.Command, name string, f restoreFlags) error {
	tab, err := session.ParseTab(f.tab)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	h := newHost()
	s := session.NewRestoreSession(a.client(), name, h.options()...)
	defer s.Close()

	s.Open(ctx)
	st, err := h.wait(ctx, s.State, session.StateFetching)
	if err != nil {
		return err
	}
	if st == session.StateFailed {
		return s.Snapshot().Err
	}

	if f.backup == "" {
		backups := s.Snapshot().Backups
		if len(backups) == 0 {
			_, _ = fmt.Fprintf(out, "%s has no backups\n", name)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Backups of %s (newest first):\n", name)
		for _, id := range backups {
			_, _ = fmt.Fprintf(out, "  %s\n", id)
		}
		return nil
	}

	if err := s.SelectBackup(f.backup); err != nil {
		return err
	}
	if err := s.SetBackupCurrent(f.backupCurrent); err != nil {
		return err
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
