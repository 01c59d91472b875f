package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/devdir"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/installer"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/logging"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

func (a *app) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [version...]",
		Short: "Install runtime development files for the specified versions",
		Long: `Install runtime development files for the specified versions.

Without a version the configured target is installed. Respects http_proxy,
HTTP_PROXY and --proxy when downloading.`,
		Example: `  addonkit install 0.8
  addonkit install --ensure 0.6 0.8
  addonkit install --verify --keyring release-keys.asc 0.10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.install(cmd.Context(), cmd.OutOrStdout(), args)
			return err
		},
	}
	addInstallFlags(cmd.Flags())
	return cmd
}

func addInstallFlags(fs *pflag.FlagSet) {
	fs.Bool("ensure", false, "skip versions that are already installed")
	fs.String("tarball", "", "install from a local source tarball (.tar.gz or .tar.xz)")
	fs.Bool("verify", false, "check the tarball against the release's SHASUMS256.txt")
	fs.String("keyring", "", "OpenPGP keyring that must have signed SHASUMS256.txt")
}

func (a *app) newInstaller() (*installer.Installer, error) {
	return installer.New(installer.Config{
		Store:    a.store,
		Platform: a.platform,
		DistURL:  a.opts.DistURL,
		Proxy:    a.opts.Proxy,
		Keyring:  a.opts.Keyring,
		Log:      logging.ComponentLogger(a.log, "installer"),
	})
}

// install installs every requested version concurrently. Each version is
// locked for the duration of its install.
func (a *app) install(ctx context.Context, out io.Writer, targets []string) ([]*installer.Result, error) {
	if len(targets) == 0 {
		targets = []string{""}
	}

	var versions []version.Version
	seen := make(map[string]bool)
	for _, target := range targets {
		v, err := installer.Resolve(target, a.opts.Target)
		if err != nil {
			return nil, err
		}
		if seen[v.String()] {
			continue
		}
		seen[v.String()] = true
		versions = append(versions, v)
	}
	if a.opts.Tarball != "" && len(versions) > 1 {
		return nil, fmt.Errorf("--tarball installs a single version, got %d", len(versions))
	}

	in, err := a.newInstaller()
	if err != nil {
		return nil, err
	}

	locks := make([]*devdir.Lock, 0, len(versions))
	defer func() {
		for _, l := range locks {
			if err := l.Release(); err != nil {
				a.log.Warn().Err(err).Msg("release install lock")
			}
		}
	}()
	for _, v := range versions {
		l, err := a.store.AcquireLock(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("install %s: %w", v, err)
		}
		locks = append(locks, l)
	}

	pending := make([]*installer.Pending, len(versions))
	for i, v := range versions {
		pending[i] = in.Start(ctx, installer.Options{
			Target:  v.String(),
			Ensure:  a.opts.Ensure,
			Tarball: a.opts.Tarball,
			Verify:  a.opts.Verify,
		})
	}

	var results []*installer.Result
	var errs []error
	for i, p := range pending {
		res, err := p.Wait()
		if err != nil {
			errs = append(errs, fmt.Errorf("install %s: %w", versions[i], err))
			continue
		}
		results = append(results, res)
		if res.Skipped {
			fmt.Fprintf(out, "%s is already installed in %s\n", res.Version, res.Dir)
			continue
		}
		fmt.Fprintf(out, "installed %s in %s\n", res.Version, res.Dir)
	}
	return results, errors.Join(errs...)
}
