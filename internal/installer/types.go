package installer

import (
	"errors"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

// Error kinds. Every error returned by Install wraps exactly one of these.
var (
	ErrInvalidVersion     = errors.New("invalid version")
	ErrUnsupportedVersion = version.ErrUnsupportedVersion
	ErrFilesystem         = errors.New("filesystem error")
	ErrNetwork            = errors.New("network error")
	ErrArchive            = errors.New("archive error")
	ErrChecksum           = errors.New("checksum error")
)

// State is a step of the install sequence.
type State string

const (
	StateChecking    State = "checking"
	StateStaging     State = "staging"
	StateFetching    State = "fetching"
	StateExtracting  State = "extracting"
	StateVerifying   State = "verifying"
	StatePatching    State = "patching"
	StateDone        State = "done"
	StateRollingBack State = "rolling_back"
)

// Options describes one install request.
type Options struct {
	// Target is the requested version ("0.8", "0.6.12", ...).
	Target string
	// Fallback is used when Target is empty, typically the configured target.
	Fallback string
	// Ensure skips the install when the version directory already exists.
	Ensure bool
	// Tarball is a local tarball used instead of downloading one.
	Tarball string
	// Verify checks the tarball against the release's SHASUMS256.txt.
	Verify bool
}

// Result describes a finished install.
type Result struct {
	Version   version.Version
	Dir       string
	InstallID string
	// Skipped is true when ensure mode found an existing install.
	Skipped bool
	// Files is the number of files written from the tarball.
	Files   int
	Patches []string
	SHA256  string
}
