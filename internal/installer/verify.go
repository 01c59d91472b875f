package installer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/rs/zerolog"
)

// maxShasumsSize bounds SHASUMS256.txt and its signature.
const maxShasumsSize = 1 << 20

// Verifier checks a tarball digest against the release's SHASUMS256.txt.
// When a keyring is configured the listing itself must carry a valid
// detached signature (SHASUMS256.txt.sig) from one of its keys.
type Verifier struct {
	downloader  *Downloader
	keyringPath string
	log         zerolog.Logger
}

// NewVerifier creates a verifier. keyringPath may be empty to skip the
// signature check.
func NewVerifier(d *Downloader, keyringPath string, log zerolog.Logger) *Verifier {
	return &Verifier{downloader: d, keyringPath: keyringPath, log: log}
}

// Verify compares sum (hex sha256) with the entry for filename in the
// listing at shasumsURL.
func (v *Verifier) Verify(ctx context.Context, shasumsURL, filename, sum string) error {
	listing, err := v.downloader.Fetch(ctx, shasumsURL, ShasumsFile, maxShasumsSize)
	if err != nil {
		return err
	}

	if v.keyringPath != "" {
		sig, err := v.downloader.Fetch(ctx, shasumsURL+".sig", ShasumsFile+".sig", maxShasumsSize)
		if err != nil {
			return err
		}
		if err := v.checkSignature(listing, sig); err != nil {
			return err
		}
		v.log.Debug().Str("keyring", v.keyringPath).Msg("SHASUMS256.txt signature verified")
	}

	expected, err := findChecksum(listing, filename)
	if err != nil {
		return err
	}

	if !strings.EqualFold(sum, expected) {
		return fmt.Errorf("%w: checksum mismatch for %s:\nactual:   %s\nexpected: %s", ErrChecksum, filename, sum, expected)
	}
	return nil
}

func (v *Verifier) checkSignature(signed, sig []byte) error {
	keyring, err := loadKeyring(v.keyringPath)
	if err != nil {
		return err
	}

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(signed), bytes.NewReader(sig), nil)
	if err != nil {
		// Try non-armored signature
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(signed), bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: verify %s signature: %w", ErrChecksum, ShasumsFile, err)
	}
	return nil
}

// loadKeyring reads an armored or binary OpenPGP keyring.
func loadKeyring(keyringPath string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open keyring: %w", ErrChecksum, err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: read keyring: %w", ErrChecksum, err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("%w: keyring is empty", ErrChecksum)
	}
	return keyring, nil
}

// findChecksum finds the checksum for filename in a listing.
// Format: "abc123def456  node-v0.8.0.tar.gz"
func findChecksum(listing []byte, filename string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || path.Base(name) == filename {
			return parts[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: scan %s: %w", ErrChecksum, ShasumsFile, err)
	}
	return "", fmt.Errorf("%w: checksum not found for %s", ErrChecksum, filename)
}
