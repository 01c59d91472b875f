// Package installer fetches a runtime's development files (headers, gyp
// configuration, the vendored gyp tree and, on Windows, the node.lib import
// library) and lays them out in a dev directory.
//
// # Install sequence
//
// An install runs through a fixed sequence of states:
//
//	CHECKING    ensure mode only: an existing version dir ends the install
//	STAGING     create <devdir>/<version>
//	FETCHING    GET the release tarball (or open a local one)
//	EXTRACTING  stream decompress+untar, keeping only allow-listed entries
//	VERIFYING   opt-in: compare the tarball sha256 with SHASUMS256.txt
//	PATCHING    version-gated compatibility steps, run concurrently
//	DONE
//
// Any failure after STAGING has begun removes the version directory before
// the original error is returned. Errors raised by the removal are logged
// and dropped.
//
// # Streaming
//
// The response body is never buffered: the tar reader pulls from the gzip or xz
// reader, which pulls from the network, so disk writes apply backpressure
// all the way to the socket.
//
// # Architecture
//   - Installer: state machine and rollback
//   - Downloader: HTTP GET with proxy support
//   - Extractor: filtered tar extraction
//   - Verifier: SHASUMS256 digest and OpenPGP signature checks
//   - patch steps: embedded compatibility files and node.lib
package installer
