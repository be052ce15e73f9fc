package pyext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// Artifact is one prebuilt binary in the repository. Its identity is the
// module name plus the platform fingerprint; the repository holds at most
// one artifact per identity.
type Artifact struct {
	Module      string      // Extension module name
	Fingerprint Fingerprint // Platform the binary was built for
	Path        string      // Location of the artifact file
	Digest      uint64      // xxhash of the artifact bytes
}

// Repository is a flat directory of prebuilt binaries keyed by platform
// fingerprint. The producer writes entries; the consumer pipeline only
// reads them.
type Repository struct {
	// Dir is the repository directory. It is created on first Store.
	Dir string
}

// Lookup resolves the artifact for the given module and fingerprint.
// Returns ErrNoPrebuiltAvailable when no entry matches; there is no
// closest-match fallback.
func (r *Repository) Lookup(module string, fp Fingerprint) (*Artifact, error) {
	path := filepath.Join(r.Dir, fp.Filename(module))

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, zerr.With(ErrNoPrebuiltAvailable, "platform", fp.String())
	}

	digest, err := fileDigest(path)
	if err != nil {
		return nil, zerr.Wrap(err, fmt.Sprintf("failed to read artifact %s", path))
	}

	return &Artifact{
		Module:      module,
		Fingerprint: fp,
		Path:        path,
		Digest:      digest,
	}, nil
}

// Store publishes the binary at sourcePath under the fingerprint's
// canonical name, overwriting any previous entry. Re-publishing identical
// bytes is detected by content digest and skips the copy, keeping producer
// runs idempotent.
func (r *Repository) Store(module string, fp Fingerprint, sourcePath string) (*Artifact, bool, error) {
	digest, err := fileDigest(sourcePath)
	if err != nil {
		return nil, false, zerr.Wrap(err, fmt.Sprintf("failed to read %s", sourcePath))
	}

	destPath := filepath.Join(r.Dir, fp.Filename(module))
	artifact := &Artifact{
		Module:      module,
		Fingerprint: fp,
		Path:        destPath,
		Digest:      digest,
	}

	if existing, lookupErr := fileDigest(destPath); lookupErr == nil && existing == digest {
		return artifact, false, nil
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, false, zerr.Wrap(err, "failed to create repository directory")
	}
	if err := copyFile(sourcePath, destPath); err != nil {
		return nil, false, zerr.Wrap(err, fmt.Sprintf("failed to store artifact %s", destPath))
	}

	return artifact, true, nil
}

// fileDigest returns the xxhash of a file's contents.
func fileDigest(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
