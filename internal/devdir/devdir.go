// Package devdir manages the per-user directory that holds one subdirectory
// of development files per installed runtime version.
//
// Layout:
//
//	<root>/
//	  0.8/                     installed version
//	    installVersion.yaml    manifest written after a successful install
//	  .0.8.lock                held while an install or remove runs
package devdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

// DefaultDirName is the directory created under the user's home.
const DefaultDirName = ".node-gyp"

// Store is a dev directory rooted at Root.
type Store struct {
	Root string
	Log  zerolog.Logger
}

// New returns a Store rooted at root. An empty root resolves to
// ~/.node-gyp.
func New(root string, log zerolog.Logger) (*Store, error) {
	if root == "" {
		var err error
		root, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}
	return &Store{Root: root, Log: log}, nil
}

// DefaultRoot returns ~/.node-gyp.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Path returns the install directory for v.
func (s *Store) Path(v version.Version) string {
	return filepath.Join(s.Root, v.String())
}

// Exists reports whether v's install directory is present. Errors other
// than not-exist are returned.
func (s *Store) Exists(v version.Version) (bool, error) {
	_, err := os.Stat(s.Path(v))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove deletes v's install directory tree. Removing a version that is not
// installed succeeds.
func (s *Store) Remove(v version.Version) error {
	dir := s.Path(v)

	exists, err := s.Exists(v)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !exists {
		s.Log.Info().Str("version", v.String()).Msg("version was already uninstalled")
		return nil
	}

	s.Log.Debug().Str("dir", dir).Msg("removing development files")
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// Installed is one entry returned by List.
type Installed struct {
	Version  version.Version
	Dir      string
	Manifest *Manifest // nil when no manifest was written
}

// List returns installed versions ordered oldest first. Entries whose name
// is not a version are ignored. A missing root yields an empty list.
func (s *Store) List() ([]Installed, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.Root, err)
	}

	var out []Installed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, ok := version.Parse(e.Name(), "")
		if !ok || v.String() != e.Name() {
			continue
		}

		item := Installed{Version: v, Dir: filepath.Join(s.Root, e.Name())}
		m, err := ReadManifest(item.Dir)
		switch {
		case err == nil:
			item.Manifest = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			s.Log.Warn().Err(err).Str("dir", item.Dir).Msg("unreadable install manifest")
		}
		out = append(out, item)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Version, out[j].Version
		return version.LessThan(a, b.Major, b.Minor)
	})
	return out, nil
}
