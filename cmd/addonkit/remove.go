package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/installer"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove [version...]",
		Aliases: []string{"uninstall"},
		Short:   "Remove installed runtime development files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.remove(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func (a *app) remove(ctx context.Context, out io.Writer, targets []string) error {
	if len(targets) == 0 {
		targets = []string{""}
	}

	for _, target := range targets {
		v, ok := version.Parse(target, a.opts.Target)
		if !ok {
			return fmt.Errorf("%w: you must specify a version to remove (like \"0.7\")", installer.ErrInvalidVersion)
		}

		lock, err := a.store.AcquireLock(ctx, v)
		if err != nil {
			return fmt.Errorf("remove %s: %w", v, err)
		}
		err = a.store.Remove(v)
		if rerr := lock.Release(); rerr != nil {
			a.log.Warn().Err(rerr).Msg("release install lock")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %s\n", v)
	}
	return nil
}
