package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/build"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/logging"
)

func (a *app) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [-- tool args...]",
		Short: "Invoke make (msbuild on Windows) and build the addon",
		Example: `  addonkit build
  addonkit build --debug -j 8
  addonkit build -- /m:4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.build(cmd.Context(), args)
		},
	}
	addBuildFlags(cmd.Flags())
	return cmd
}

func addBuildFlags(fs *pflag.FlagSet) {
	fs.Bool("debug", false, "build the Debug configuration instead of Release")
	fs.IntP("jobs", "j", 0, "parallel make jobs")
	fs.String("solution", "", "msbuild solution file (default bindings.sln)")
}

func (a *app) build(ctx context.Context, args []string) error {
	d := build.New(a.platform.OS, logging.ComponentLogger(a.log, "build"))
	return a.runBuild(ctx, d, build.Options{
		Args:     args,
		Debug:    a.opts.Debug,
		Verbose:  a.opts.Verbose,
		Jobs:     a.opts.Jobs,
		Solution: a.opts.Solution,
	})
}
