package installer

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/platform"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

//go:embed assets
var assets embed.FS

var (
	// 0.6.x ships without addon.gypi, gyp_addon and a usable common.gypi.
	before07 = version.MustConstraint("< 0.7")
	// Releases before 0.8 need per-platform link fixes (joyent/node#2685
	// on Windows, joyent/node#2722 elsewhere).
	before08 = version.MustConstraint("< 0.8")
)

// patchEnv is what a patch step may touch.
type patchEnv struct {
	version    version.Version
	dir        string
	distURL    string
	downloader *Downloader
	log        zerolog.Logger
}

// patchStep is one post-extraction compatibility step.
type patchStep struct {
	name    string
	applies func(v version.Version, p *platform.Info) bool
	run     func(ctx context.Context, env *patchEnv) error
}

// defaultPatchSteps lists every compatibility step in a fixed order.
func defaultPatchSteps() []patchStep {
	return []patchStep{
		{
			name: "legacy",
			applies: func(v version.Version, _ *platform.Info) bool {
				return before07.Check(v)
			},
			run: copyLegacy,
		},
		{
			name: "node-lib",
			applies: func(_ version.Version, p *platform.Info) bool {
				return p.NeedsImportLibrary()
			},
			run: downloadNodeLib,
		},
		{
			name: "patch-2685",
			applies: func(v version.Version, p *platform.Info) bool {
				return p.IsWindows() && before08.Check(v)
			},
			run: func(ctx context.Context, env *patchEnv) error {
				return copyAsset(env, "assets/2685/patch.gypi", filepath.Join(env.dir, "tools", "patch.gypi"))
			},
		},
		{
			name: "patch-2722",
			applies: func(v version.Version, p *platform.Info) bool {
				return !p.IsWindows() && before08.Check(v)
			},
			run: func(ctx context.Context, env *patchEnv) error {
				return copyAsset(env, "assets/2722/patch.gypi", filepath.Join(env.dir, "tools", "patch2722.gypi"))
			},
		},
	}
}

// copyLegacy copies the bundled legacy files. common.gypi lands in the
// version root, everything else in tools/.
func copyLegacy(ctx context.Context, env *patchEnv) error {
	env.log.Debug().Msg("copying legacy development files")

	const legacyDir = "assets/legacy"
	files, err := fs.ReadDir(assets, legacyDir)
	if err != nil {
		return fmt.Errorf("%w: read legacy files: %w", ErrFilesystem, err)
	}

	toolsDir := filepath.Join(env.dir, "tools")
	for _, f := range files {
		to := filepath.Join(toolsDir, f.Name())
		if f.Name() == "common.gypi" {
			to = filepath.Join(env.dir, f.Name())
		}
		if err := copyAsset(env, path.Join(legacyDir, f.Name()), to); err != nil {
			return err
		}
	}
	return nil
}

func copyAsset(env *patchEnv, name, to string) error {
	data, err := assets.ReadFile(name)
	if err != nil {
		return fmt.Errorf("%w: read bundled %s: %w", ErrFilesystem, name, err)
	}

	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return fmt.Errorf("%w: create dir for %s: %w", ErrFilesystem, to, err)
	}

	mode := os.FileMode(0644)
	if path.Base(name) == "gyp_addon" {
		mode = 0755
	}
	if err := os.WriteFile(to, data, mode); err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrFilesystem, to, err)
	}

	env.log.Debug().Str("from", name).Str("to", to).Msg("copied bundled file")
	return nil
}

// downloadNodeLib fetches node.lib once and writes it to both the Release
// and Debug directories.
func downloadNodeLib(ctx context.Context, env *patchEnv) error {
	releaseDir := filepath.Join(env.dir, "Release")
	debugDir := filepath.Join(env.dir, "Debug")
	for _, d := range []string{releaseDir, debugDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrFilesystem, d, err)
		}
	}

	libURL := NodeLibURL(env.distURL, env.version)
	env.log.Info().Str("url", libURL).Msg("downloading node.lib")

	body, err := env.downloader.Open(ctx, libURL, "node.lib")
	if err != nil {
		return err
	}
	defer body.Close()

	var outs []io.Writer
	for _, d := range []string{releaseDir, debugDir} {
		p := filepath.Join(d, "node.lib")
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrFilesystem, p, err)
		}
		defer f.Close()
		outs = append(outs, f)
		env.log.Debug().Str("path", p).Msg("streaming node.lib")
	}

	if _, err := io.Copy(io.MultiWriter(outs...), body); err != nil {
		return classifyCopy(fmt.Errorf("write node.lib: %w", err))
	}

	for _, w := range outs {
		if err := w.(*os.File).Close(); err != nil {
			return fmt.Errorf("%w: close node.lib: %w", ErrFilesystem, err)
		}
	}
	return nil
}
