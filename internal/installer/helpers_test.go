package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/devdir"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/platform"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
}

func regEntry(name, body string) tarEntry {
	return tarEntry{name: name, body: body, mode: 0644, typeflag: tar.TypeReg}
}

func dirEntry(name string) tarEntry {
	return tarEntry{name: name, mode: 0755, typeflag: tar.TypeDir}
}

func writeTar(t *testing.T, buf *bytes.Buffer, entries []tarEntry) {
	t.Helper()
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Typeflag: e.typeflag,
		}
		if e.typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

// tarGz builds an in-memory .tar.gz.
func tarGz(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()
	var raw bytes.Buffer
	writeTar(t, &raw, entries)

	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	_, err := gw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return out.Bytes()
}

// tarXZ builds an in-memory .tar.xz.
func tarXZ(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()
	var raw bytes.Buffer
	writeTar(t, &raw, entries)

	var out bytes.Buffer
	xw, err := xz.NewWriter(&out)
	require.NoError(t, err)
	_, err = xw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return out.Bytes()
}

// releaseTarball is a representative source tarball for v0.8.0.
func releaseTarball(t *testing.T, wrapper string) []byte {
	t.Helper()
	return tarGz(t,
		dirEntry(wrapper+"/"),
		regEntry(wrapper+"/common.gypi", "{ 'variables': {} }"),
		regEntry(wrapper+"/node.gyp", "{}"),
		regEntry(wrapper+"/README.md", "readme"),
		dirEntry(wrapper+"/src/"),
		regEntry(wrapper+"/src/node.h", "#define NODE_H"),
		regEntry(wrapper+"/src/node.cc", "int main() {}"),
		regEntry(wrapper+"/tools/addon.gypi", "{}"),
		regEntry(wrapper+"/tools/install.py", "print 1"),
		tarEntry{name: wrapper + "/tools/gyp/gyp", body: "#!/bin/sh", mode: 0755, typeflag: tar.TypeReg},
		regEntry(wrapper+"/tools/gyp/pylib/gyp/__init__.py", "# gyp"),
		regEntry(wrapper+"/tools/gyp/test/foo", "test"),
		regEntry(wrapper+"/deps/v8/include/v8.h", "// v8"),
		regEntry(wrapper+"/deps/uv/include/uv-private/uv-unix.h", "// uv"),
		regEntry(wrapper+"/deps/uv/src/unix/core.c", "// core"),
	)
}

// distServer serves fixed paths and counts requests.
type distServer struct {
	*httptest.Server
	mu       sync.Mutex
	files    map[string][]byte
	requests atomic.Int32
	paths    []string
}

func newDistServer(t *testing.T, files map[string][]byte) *distServer {
	t.Helper()
	ds := &distServer{files: files}
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds.requests.Add(1)
		ds.mu.Lock()
		ds.paths = append(ds.paths, r.URL.Path)
		body, ok := ds.files[r.URL.Path]
		ds.mu.Unlock()

		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(ds.Close)
	return ds
}

func (ds *distServer) dist() string {
	return ds.URL + "/dist"
}

func linux() *platform.Info {
	return &platform.Info{OS: "linux", Arch: "amd64", NodeArch: "x64"}
}

func windows() *platform.Info {
	return &platform.Info{OS: "windows", Arch: "amd64", NodeArch: "x64"}
}

func newTestInstaller(t *testing.T, plat *platform.Info, distURL string) (*Installer, *devdir.Store) {
	t.Helper()
	store, err := devdir.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	in, err := New(Config{
		Store:    store,
		Platform: plat,
		DistURL:  distURL,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return in, store
}

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, ok := version.Parse(s, "")
	require.True(t, ok, s)
	return v
}
