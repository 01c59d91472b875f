package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/build"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/devdir"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/installer"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/platform"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/testutil"
)

func sourceTarball(t *testing.T, release string) []byte {
	t.Helper()
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for name, body := range map[string]string{
		"common.gypi":          "{}",
		"src/node.h":           "// node",
		"src/node.cc":          "// dropped",
		"deps/v8/include/v8.h": "// v8",
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "node-" + release + "/" + name,
			Mode:     0644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	_, err := gw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return out.Bytes()
}

type fixture struct {
	app      *app
	devdir   string
	dist     string
	requests *atomic.Int32
	builds   []build.Options
}

func newFixture(t *testing.T, env ...string) *fixture {
	t.Helper()
	f := &fixture{devdir: t.TempDir(), requests: &atomic.Int32{}}

	files := map[string][]byte{
		"/dist/v0.8.0/node-v0.8.0.tar.gz":   sourceTarball(t, "v0.8.0"),
		"/dist/v0.10.0/node-v0.10.0.tar.gz": sourceTarball(t, "v0.10.0"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	f.dist = srv.URL + "/dist"

	testutil.SetupTestEnv(t)
	f.app = &app{
		getenv:   func(string) string { return "" },
		environ:  env,
		detector: platform.Static{Info: &platform.Info{OS: "linux", Arch: "amd64", NodeArch: "x64"}},
		runBuild: func(_ context.Context, _ *build.Driver, opts build.Options) error {
			f.builds = append(f.builds, opts)
			return nil
		},
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(f.app)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--devdir", f.devdir, "--dist-url", f.dist, "--log-format", "json"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInstallCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "install", "0.8", "0.10")
	require.NoError(t, err)
	assert.Contains(t, out, "installed 0.8 in "+filepath.Join(f.devdir, "0.8"))
	assert.Contains(t, out, "installed 0.10 in "+filepath.Join(f.devdir, "0.10"))

	assert.FileExists(t, filepath.Join(f.devdir, "0.8", "src", "node.h"))
	assert.NoFileExists(t, filepath.Join(f.devdir, "0.8", "src", "node.cc"))
	assert.FileExists(t, filepath.Join(f.devdir, "0.10", devdir.ManifestFile))

	// locks are released
	assert.NoFileExists(t, filepath.Join(f.devdir, ".0.8.lock"))
	assert.NoFileExists(t, filepath.Join(f.devdir, ".0.10.lock"))
}

func TestInstallCommand_Ensure(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "install", "0.8")
	require.NoError(t, err)
	requests := f.requests.Load()

	out, err := f.run(t, "install", "--ensure", "0.8.3")
	require.NoError(t, err)
	assert.Contains(t, out, "0.8 is already installed")
	assert.Equal(t, requests, f.requests.Load())
}

func TestInstallCommand_TargetFromEnvironment(t *testing.T) {
	f := newFixture(t, "npm_config_target=0.10", "npm_config_loglevel=silly")

	out, err := f.run(t, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "installed 0.10")
}

func TestInstallCommand_FlagBeatsEnvironment(t *testing.T) {
	f := newFixture(t, "npm_config_target=0.10")

	out, err := f.run(t, "--target", "0.8", "install")
	require.NoError(t, err)
	assert.Contains(t, out, "installed 0.8")
	assert.NotContains(t, out, "0.10")
}

func TestInstallCommand_TargetFromConfigFile(t *testing.T) {
	f := newFixture(t)
	cfg := filepath.Join(t.TempDir(), "config.lua")
	require.NoError(t, os.WriteFile(cfg, []byte(`
		addonkit = {
			target = platform.is_linux and "0.10" or "0.8",
		}
	`), 0644))

	out, err := f.run(t, "--config", cfg, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "installed 0.10")
}

func TestInstallCommand_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "install")
	assert.ErrorIs(t, err, installer.ErrInvalidVersion)

	_, err = f.run(t, "install", "0.4")
	assert.ErrorIs(t, err, installer.ErrUnsupportedVersion)

	_, err = f.run(t, "install", "0.12")
	require.Error(t, err)
	assert.ErrorIs(t, err, installer.ErrNetwork)
	assert.Contains(t, err.Error(), "install 0.12")
	assert.NoDirExists(t, filepath.Join(f.devdir, "0.12"))

	_, err = f.run(t, "install", "--tarball", "x.tar.gz", "0.8", "0.10")
	assert.Error(t, err)

	assert.Equal(t, int32(1), f.requests.Load(), "only the 0.12 download reached the server")
}

func TestInstallCommand_LockedVersion(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.devdir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.devdir, ".0.8.lock"), []byte("pid=1\n"), 0600))

	_, err := f.run(t, "install", "0.8")
	require.Error(t, err)
	assert.ErrorIs(t, err, devdir.ErrLockExists)
	assert.Zero(t, f.requests.Load())
}

func TestRemoveCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "install", "0.8")
	require.NoError(t, err)

	out, err := f.run(t, "remove", "0.8")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0.8")
	assert.NoDirExists(t, filepath.Join(f.devdir, "0.8"))

	// removing again is not an error
	_, err = f.run(t, "remove", "0.8")
	require.NoError(t, err)

	_, err = f.run(t, "remove", "latest")
	assert.ErrorIs(t, err, installer.ErrInvalidVersion)
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No runtime versions installed.")

	_, err = f.run(t, "install", "0.10", "0.8")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(f.devdir, "not-a-version"), 0755))

	out, err = f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.NotContains(t, out, "not-a-version")
	i8 := bytes.Index([]byte(out), []byte("0.8 "))
	i10 := bytes.Index([]byte(out), []byte("0.10 "))
	require.NotEqual(t, -1, i8)
	require.NotEqual(t, -1, i10)
	assert.Less(t, i8, i10, "versions are listed oldest first")
}

func TestBuildCommand(t *testing.T) {
	f := newFixture(t, "npm_config_jobs=2")

	_, err := f.run(t, "build", "--debug", "--verbose", "--", "all")
	require.NoError(t, err)

	require.Len(t, f.builds, 1)
	assert.Equal(t, build.Options{
		Args:     []string{"all"},
		Debug:    true,
		Verbose:  true,
		Jobs:     2,
		Solution: build.DefaultSolution,
	}, f.builds[0])
}

func TestRebuildCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "--target", "0.8", "rebuild", "-j", "4")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(f.devdir, "0.8"))
	require.Len(t, f.builds, 1)
	assert.Equal(t, 4, f.builds[0].Jobs)

	requests := f.requests.Load()
	_, err = f.run(t, "--target", "0.8", "rebuild")
	require.NoError(t, err)
	assert.Equal(t, requests, f.requests.Load(), "rebuild does not reinstall")
	assert.Len(t, f.builds, 2)
}

func TestFlagValues_OnlyChangedOptions(t *testing.T) {
	cmd := newRootCmd(newApp())
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--dist-url", "http://x", "--config", "c.lua"}))

	values := flagValues(cmd.PersistentFlags())
	assert.Equal(t, "http://x", values["dist_url"])
	assert.NotContains(t, values, "config")
	assert.NotContains(t, values, "proxy")
}
