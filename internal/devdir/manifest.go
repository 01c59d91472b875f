package devdir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest inside a version directory.
const ManifestFile = "installVersion.yaml"

// Manifest records how a version directory was produced.
type Manifest struct {
	InstallID   string    `yaml:"install_id"`
	Version     string    `yaml:"version"`
	TarballURL  string    `yaml:"tarball_url"`
	SHA256      string    `yaml:"sha256,omitempty"`
	Verified    bool      `yaml:"verified"`
	Patches     []string  `yaml:"patches,omitempty"`
	OS          string    `yaml:"os"`
	Arch        string    `yaml:"arch"`
	InstalledAt time.Time `yaml:"installed_at"`
}

// WriteManifest writes m into dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest from dir. A missing manifest returns an
// error satisfying errors.Is(err, fs.ErrNotExist).
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
