package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/devdir"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/platform"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

// Remover deletes an installed version. It is invoked on rollback.
type Remover interface {
	Remove(v version.Version) error
}

// Config holds configuration for the installer.
type Config struct {
	// Store is the dev directory to install into.
	Store *devdir.Store
	// Platform gates the Windows-only steps.
	Platform *platform.Info
	// DistURL defaults to DefaultDistURL.
	DistURL string
	// Proxy is an already-resolved proxy URL, or empty for direct access.
	Proxy string
	// Keyring enables signature checks of SHASUMS256.txt when set.
	Keyring string
	// Remover defaults to Store.
	Remover Remover
	// OnState, when set, is called on every state transition.
	OnState func(State)
	Log     zerolog.Logger
}

// Installer installs development files for one version at a time per
// version directory. Installs of different versions may run concurrently.
type Installer struct {
	store      *devdir.Store
	platform   *platform.Info
	distURL    string
	downloader *Downloader
	extractor  *Extractor
	verifier   *Verifier
	remover    Remover
	steps      []patchStep
	onState    func(State)
	log        zerolog.Logger
}

// New creates an installer.
func New(cfg Config) (*Installer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.Platform == nil {
		return nil, fmt.Errorf("Platform is required")
	}

	downloader, err := NewDownloader(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	distURL := cfg.DistURL
	if distURL == "" {
		distURL = DefaultDistURL
	}

	remover := cfg.Remover
	if remover == nil {
		remover = cfg.Store
	}

	if cfg.Proxy != "" {
		cfg.Log.Debug().Str("proxy", cfg.Proxy).Msg("using proxy")
	}

	return &Installer{
		store:      cfg.Store,
		platform:   cfg.Platform,
		distURL:    distURL,
		downloader: downloader,
		extractor:  NewExtractor(cfg.Log),
		verifier:   NewVerifier(downloader, cfg.Keyring, cfg.Log),
		remover:    remover,
		steps:      defaultPatchSteps(),
		onState:    cfg.OnState,
		log:        cfg.Log,
	}, nil
}

// Resolve parses the requested version and enforces the version floor. It
// performs no I/O.
func Resolve(target, fallback string) (version.Version, error) {
	v, ok := version.Parse(target, fallback)
	if !ok {
		return version.Version{}, fmt.Errorf("%w: you must specify a version to install (like \"0.7\")", ErrInvalidVersion)
	}
	if err := version.CheckFloor(v); err != nil {
		return version.Version{}, err
	}
	return v, nil
}

// Install installs the development files described by opts.
//
// Errors before the version directory is staged leave the filesystem
// untouched. Errors after that point remove the version directory, then
// the original error is returned.
func (in *Installer) Install(ctx context.Context, opts Options) (*Result, error) {
	v, err := Resolve(opts.Target, opts.Fallback)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Version:   v,
		Dir:       in.store.Path(v),
		InstallID: uuid.NewString(),
	}
	log := in.log.With().Str("install_id", res.InstallID).Str("version", v.String()).Logger()

	if opts.Ensure {
		in.enter(log, StateChecking)
		log.Debug().Msg("--ensure was passed, so won't reinstall if already installed")
		exists, err := in.store.Exists(v)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %w", ErrFilesystem, res.Dir, err)
		}
		if exists {
			log.Debug().Msg("version is already installed, not re-installing")
			res.Skipped = true
			in.enter(log, StateDone)
			return res, nil
		}
		log.Debug().Msg("version not already installed, continuing with install")
	}

	if err := in.install(ctx, v, opts, res, log); err != nil {
		in.enter(log, StateRollingBack)
		log.Debug().Err(err).Msg("got an error, rolling back install")
		if rerr := in.remover.Remove(v); rerr != nil {
			log.Warn().Err(rerr).Msg("rollback failed")
		}
		return nil, err
	}

	in.enter(log, StateDone)
	return res, nil
}

func (in *Installer) install(ctx context.Context, v version.Version, opts Options, res *Result, log zerolog.Logger) error {
	in.enter(log, StateStaging)
	if err := os.MkdirAll(res.Dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrFilesystem, res.Dir, err)
	}
	log.Debug().Str("dir", res.Dir).Msg("created dev dir")

	in.enter(log, StateFetching)
	src, name, err := in.open(ctx, v, opts, log)
	if err != nil {
		return err
	}
	defer src.Close()

	var digest hash.Hash
	stream := io.Reader(src)
	if opts.Verify {
		digest = sha256.New()
		stream = io.TeeReader(src, digest)
	}

	in.enter(log, StateExtracting)
	n, err := in.extractor.Extract(stream, res.Dir, CompressionFor(name))
	if err != nil {
		return err
	}
	res.Files = n
	log.Debug().Int("files", n).Msg("done parsing tarball")

	if opts.Verify {
		in.enter(log, StateVerifying)
		// the tar reader stops at the end-of-archive marker; hash the rest
		if _, err := io.Copy(io.Discard, stream); err != nil {
			return classifyRead(fmt.Errorf("drain tarball: %w", err))
		}
		res.SHA256 = hex.EncodeToString(digest.Sum(nil))
		if err := in.verifier.Verify(ctx, ShasumsURL(in.distURL, v), name, res.SHA256); err != nil {
			return err
		}
		log.Debug().Str("sha256", res.SHA256).Msg("tarball checksum verified")
	}

	in.enter(log, StatePatching)
	patches, err := in.patch(ctx, v, res.Dir, log)
	if err != nil {
		return err
	}
	res.Patches = patches

	tarballURL := TarballURL(in.distURL, v)
	if opts.Tarball != "" {
		tarballURL = opts.Tarball
	}
	err = devdir.WriteManifest(res.Dir, &devdir.Manifest{
		InstallID:   res.InstallID,
		Version:     v.String(),
		TarballURL:  tarballURL,
		SHA256:      res.SHA256,
		Verified:    opts.Verify,
		Patches:     patches,
		OS:          in.platform.OS,
		Arch:        in.platform.NodeArch,
		InstalledAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystem, err)
	}
	return nil
}

// open returns the compressed tarball stream and a name used to pick the
// decompressor.
func (in *Installer) open(ctx context.Context, v version.Version, opts Options, log zerolog.Logger) (io.ReadCloser, string, error) {
	if opts.Tarball != "" {
		log.Info().Str("tarball", opts.Tarball).Msg("using local tarball")
		f, err := os.Open(opts.Tarball)
		if err != nil {
			return nil, "", fmt.Errorf("%w: open tarball: %w", ErrFilesystem, err)
		}
		return f, filepath.Base(opts.Tarball), nil
	}

	u := TarballURL(in.distURL, v)
	log.Info().Str("url", u).Msg("downloading")
	body, err := in.downloader.Open(ctx, u, "tarball")
	if err != nil {
		return nil, "", err
	}
	return body, tarballName(v), nil
}

// patch runs every applicable compatibility step concurrently and waits for
// all of them. A failing step does not cancel its siblings; the first
// failure is returned.
func (in *Installer) patch(ctx context.Context, v version.Version, dir string, log zerolog.Logger) ([]string, error) {
	env := &patchEnv{
		version:    v,
		dir:        dir,
		distURL:    in.distURL,
		downloader: in.downloader,
		log:        log,
	}

	var names []string
	var g errgroup.Group
	for _, step := range in.steps {
		if !step.applies(v, in.platform) {
			continue
		}
		names = append(names, step.name)
		log.Debug().Str("step", step.name).Msg("applying compatibility step")
		g.Go(func() error {
			if err := step.run(ctx, env); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (in *Installer) enter(log zerolog.Logger, s State) {
	log.Debug().Str("state", string(s)).Msg("install state")
	if in.onState != nil {
		in.onState(s)
	}
}
