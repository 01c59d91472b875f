package installer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/devdir"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func shasums(entries map[string]string) []byte {
	var buf bytes.Buffer
	for name, sum := range entries {
		fmt.Fprintf(&buf, "%s  %s\n", sum, name)
	}
	return buf.Bytes()
}

func newSigningKey(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Signer", "", "release@example.com", &packet.Config{
		Algorithm: packet.PubKeyAlgoEdDSA,
	})
	require.NoError(t, err)
	return entity
}

// writeKeyring writes the entity's public key as a binary keyring.
func writeKeyring(t *testing.T, entity *openpgp.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, entity.Serialize(&buf))
	p := filepath.Join(t.TempDir(), "keyring.gpg")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0644))
	return p
}

func armoredSignature(t *testing.T, entity *openpgp.Entity, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&buf, entity, bytes.NewReader(data), nil))
	return buf.Bytes()
}

func binarySignature(t *testing.T, entity *openpgp.Entity, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, openpgp.DetachSign(&buf, entity, bytes.NewReader(data), nil))
	return buf.Bytes()
}

func TestFindChecksum(t *testing.T) {
	listing := []byte(`abc123  node-v0.8.0.tar.gz
def456  node-v0.8.0-x64.msi
ffff00 *node-v0.8.0.pkg

garbage
9999aa  win-x64/node.lib
`)

	sum, err := findChecksum(listing, "node-v0.8.0.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sum)

	sum, err = findChecksum(listing, "node-v0.8.0.pkg")
	require.NoError(t, err)
	assert.Equal(t, "ffff00", sum)

	sum, err = findChecksum(listing, "node.lib")
	require.NoError(t, err)
	assert.Equal(t, "9999aa", sum)

	_, err = findChecksum(listing, "node-v0.8.0.tar.xz")
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestInstall_VerifyChecksum(t *testing.T) {
	archive := releaseTarball(t, "node-v0.8.0")

	tests := []struct {
		name    string
		listing []byte
		wantErr error
	}{
		{
			name:    "match",
			listing: shasums(map[string]string{"node-v0.8.0.tar.gz": sha256Hex(archive)}),
		},
		{
			name:    "upper case listing",
			listing: shasums(map[string]string{"node-v0.8.0.tar.gz": fmt.Sprintf("%X", sha256.Sum256(archive))}),
		},
		{
			name:    "mismatch",
			listing: shasums(map[string]string{"node-v0.8.0.tar.gz": sha256Hex([]byte("other"))}),
			wantErr: ErrChecksum,
		},
		{
			name:    "missing entry",
			listing: shasums(map[string]string{"node-v0.8.0.tar.xz": sha256Hex(archive)}),
			wantErr: ErrChecksum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newDistServer(t, map[string][]byte{
				tarball08:                     archive,
				"/dist/v0.8.0/SHASUMS256.txt": tt.listing,
			})
			in, store := newTestInstaller(t, linux(), ds.dist())

			res, err := in.Install(context.Background(), Options{Target: "0.8", Verify: true})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NoDirExists(t, filepath.Join(store.Root, "0.8"))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, sha256Hex(archive), res.SHA256)

			m, err := devdir.ReadManifest(res.Dir)
			require.NoError(t, err)
			assert.True(t, m.Verified)
			assert.Equal(t, res.SHA256, m.SHA256)
		})
	}
}

func TestInstall_VerifyLocalXZ(t *testing.T) {
	archive := tarXZ(t, regEntry("node-v0.8.0/src/node.h", "// node"))
	path := filepath.Join(t.TempDir(), "node-v0.8.0.tar.xz")
	require.NoError(t, os.WriteFile(path, archive, 0644))

	ds := newDistServer(t, map[string][]byte{
		"/dist/v0.8.0/SHASUMS256.txt": shasums(map[string]string{
			"node-v0.8.0.tar.gz": sha256Hex([]byte("gzip release")),
			"node-v0.8.0.tar.xz": sha256Hex(archive),
		}),
	})
	in, _ := newTestInstaller(t, linux(), ds.dist())

	res, err := in.Install(context.Background(), Options{Target: "0.8", Tarball: path, Verify: true})
	require.NoError(t, err)
	assert.Equal(t, sha256Hex(archive), res.SHA256)
	assert.FileExists(t, filepath.Join(res.Dir, "src", "node.h"))
}

func TestInstall_VerifyMissingShasums(t *testing.T) {
	ds := newDistServer(t, map[string][]byte{
		tarball08: releaseTarball(t, "node-v0.8.0"),
	})
	in, store := newTestInstaller(t, linux(), ds.dist())

	_, err := in.Install(context.Background(), Options{Target: "0.8", Verify: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "404 status code downloading SHASUMS256.txt")
	assert.NoDirExists(t, filepath.Join(store.Root, "0.8"))
}

func TestVerifier_Signature(t *testing.T) {
	signer := newSigningKey(t)
	stranger := newSigningKey(t)
	keyring := writeKeyring(t, signer)

	listing := shasums(map[string]string{"node-v0.8.0.tar.gz": "abc123"})

	tests := []struct {
		name    string
		sig     []byte
		listing []byte
		wantErr bool
	}{
		{name: "armored", sig: armoredSignature(t, signer, listing), listing: listing},
		{name: "binary", sig: binarySignature(t, signer, listing), listing: listing},
		{name: "unknown signer", sig: armoredSignature(t, stranger, listing), listing: listing, wantErr: true},
		{
			name:    "tampered listing",
			sig:     armoredSignature(t, signer, listing),
			listing: shasums(map[string]string{"node-v0.8.0.tar.gz": "evil00"}),
			wantErr: true,
		},
		{name: "garbage signature", sig: []byte("not a signature"), listing: listing, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newDistServer(t, map[string][]byte{
				"/dist/v0.8.0/SHASUMS256.txt":     tt.listing,
				"/dist/v0.8.0/SHASUMS256.txt.sig": tt.sig,
			})
			d, err := NewDownloader("")
			require.NoError(t, err)
			v := NewVerifier(d, keyring, zerolog.Nop())

			err = v.Verify(context.Background(), ds.dist()+"/v0.8.0/SHASUMS256.txt", "node-v0.8.0.tar.gz", "abc123")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrChecksum)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifier_MissingSignature(t *testing.T) {
	keyring := writeKeyring(t, newSigningKey(t))
	listing := shasums(map[string]string{"node-v0.8.0.tar.gz": "abc123"})
	ds := newDistServer(t, map[string][]byte{
		"/dist/v0.8.0/SHASUMS256.txt": listing,
	})

	d, err := NewDownloader("")
	require.NoError(t, err)
	v := NewVerifier(d, keyring, zerolog.Nop())

	err = v.Verify(context.Background(), ds.dist()+"/v0.8.0/SHASUMS256.txt", "node-v0.8.0.tar.gz", "abc123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "SHASUMS256.txt.sig")
}

func TestLoadKeyring(t *testing.T) {
	_, err := loadKeyring(filepath.Join(t.TempDir(), "missing.gpg"))
	assert.ErrorIs(t, err, ErrChecksum)

	bad := filepath.Join(t.TempDir(), "bad.gpg")
	require.NoError(t, os.WriteFile(bad, []byte("not a key"), 0644))
	_, err = loadKeyring(bad)
	assert.ErrorIs(t, err, ErrChecksum)

	keyring, err := loadKeyring(writeKeyring(t, newSigningKey(t)))
	require.NoError(t, err)
	assert.Len(t, keyring, 1)
}
