package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/build"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/config"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/devdir"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/logging"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/platform"
)

// app carries what every subcommand needs once options are resolved.
type app struct {
	getenv   func(string) string
	environ  []string
	detector platform.Detector
	runBuild func(ctx context.Context, d *build.Driver, opts build.Options) error

	configPath string
	logFormat  string

	opts     *config.Options
	platform *platform.Info
	store    *devdir.Store
	log      zerolog.Logger
}

func newApp() *app {
	return &app{
		getenv:   os.Getenv,
		environ:  os.Environ(),
		detector: platform.NewDetector(),
		runBuild: func(ctx context.Context, d *build.Driver, opts build.Options) error {
			return d.Run(ctx, opts)
		},
		log: zerolog.Nop(),
	}
}

// flags that configure the CLI itself rather than an option
var nonOptionFlags = map[string]bool{
	"config":     true,
	"log-format": true,
	"help":       true,
	"version":    true,
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "addonkit",
		Short:         "Native addon build tool",
		Long:          "addonkit installs runtime development files and builds native addons against them.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Lua config file (default $XDG_CONFIG_HOME/addonkit/config.lua)")
	pf.StringVar(&a.logFormat, "log-format", logging.FormatAuto, "log format: auto, console or json")
	pf.Bool("verbose", false, "debug logging and verbose build output")
	pf.String("target", "", "runtime version to build against (like \"0.8\")")
	pf.String("devdir", "", "dev directory root (default ~/.node-gyp)")
	pf.String("dist-url", "", "distribution server URL")
	pf.String("proxy", "", "HTTP proxy for downloads (default $http_proxy, $HTTP_PROXY)")

	cmd.AddCommand(
		a.newInstallCmd(),
		a.newRemoveCmd(),
		a.newListCmd(),
		a.newBuildCmd(),
		a.newRebuildCmd(),
	)
	return cmd
}

// setup resolves options (flags > npm_config_* > config file > defaults),
// builds the logger and opens the dev directory.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := a.detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}

	fileValues, err := config.NewParser(info, zerolog.Nop()).Load(ctx, a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %s", config.FormatError(err, false))
	}

	opts, err := config.Resolve(fileValues, config.FromEnv(a.environ), flagValues(cmd.Flags()))
	if err != nil {
		return err
	}
	opts.Proxy = config.ResolveProxy(opts.Proxy, a.getenv)

	level := zerolog.LevelInfoValue
	if opts.Verbose {
		level = zerolog.LevelDebugValue
	}
	a.log = logging.New(logging.Config{
		Level:  level,
		Format: a.logFormat,
		Output: cmd.ErrOrStderr(),
	})

	store, err := devdir.New(opts.DevDir, logging.ComponentLogger(a.log, "devdir"))
	if err != nil {
		return err
	}

	a.opts, a.platform, a.store = opts, info, store
	a.log.Debug().
		Str("os", info.OS).
		Str("arch", info.NodeArch).
		Str("devdir", store.Root).
		Str("dist_url", opts.DistURL).
		Msg("resolved options")
	return nil
}

// flagValues returns the explicitly set option flags.
func flagValues(fs *pflag.FlagSet) config.Values {
	values := config.Values{}
	fs.Visit(func(f *pflag.Flag) {
		if nonOptionFlags[f.Name] {
			return
		}
		values[config.NormalizeKey(f.Name)] = f.Value.String()
	})
	return values
}
