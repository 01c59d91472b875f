package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed runtime versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.list(cmd.OutOrStdout())
		},
	}
}

func (a *app) list(out io.Writer) error {
	installed, err := a.store.List()
	if err != nil {
		return err
	}

	if len(installed) == 0 {
		fmt.Fprintln(out, "No runtime versions installed.")
		return nil
	}

	const tabPadding = 2
	w := tabwriter.NewWriter(out, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(w, "VERSION\tINSTALLED\tVERIFIED\tPATCHES")
	for _, item := range installed {
		installedAt, verified, patches := "-", "-", "-"
		if m := item.Manifest; m != nil {
			installedAt = m.InstalledAt.Local().Format(time.DateTime)
			verified = fmt.Sprint(m.Verified)
			if len(m.Patches) > 0 {
				patches = strings.Join(m.Patches, ",")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.Version, installedAt, verified, patches)
	}
	return w.Flush()
}
