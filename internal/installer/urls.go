package installer

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

// DefaultDistURL is the runtime distribution server.
const DefaultDistURL = "https://nodejs.org/dist"

// ShasumsFile is the checksum listing published next to each release.
const ShasumsFile = "SHASUMS256.txt"

// nodeLibPatch maps minor lines whose .0 release shipped without node.lib to
// the first patch release that has it:
//   - 0.6.10 is the first 0.6 release with node.lib
//   - 0.7.1 is the first 0.7 release with node.lib
//
// Every other line uses its .0 release.
var nodeLibPatch = map[string]int{
	"0.6": 10,
	"0.7": 1,
}

// releaseURL returns <dist>/v<M.m>.0
func releaseURL(dist string, v version.Version) string {
	return strings.TrimRight(dist, "/") + "/" + v.Release()
}

// tarballName returns node-v<M.m>.0.tar.gz
func tarballName(v version.Version) string {
	return fmt.Sprintf("node-%s.tar.gz", v.Release())
}

// TarballURL returns the source tarball URL for v.
// Pattern: <dist>/v{M.m}.0/node-v{M.m}.0.tar.gz
func TarballURL(dist string, v version.Version) string {
	return releaseURL(dist, v) + "/" + tarballName(v)
}

// ShasumsURL returns the checksum listing URL for v's release.
func ShasumsURL(dist string, v version.Version) string {
	return releaseURL(dist, v) + "/" + ShasumsFile
}

// NodeLibURL returns the Windows import library URL for v.
// Pattern: <dist>/v{M.m}.{patch}/node.lib
func NodeLibURL(dist string, v version.Version) string {
	patch := nodeLibPatch[v.String()]
	return fmt.Sprintf("%s/v%d.%d.%d/node.lib", strings.TrimRight(dist, "/"), v.Major, v.Minor, patch)
}
