package dag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DigestStorePath is the fixed, well-known location of the digest store
// relative to the working directory.
const DigestStorePath = ".weave/digests.json"

// pathDigest caches a content digest keyed by the file's size and mtime at
// the time it was computed, so an unchanged file need not be re-read on
// every build.
type pathDigest struct {
	Digest string    `json:"digest"`
	Size   int64     `json:"size"`
	MTime  time.Time `json:"mtime"`
}

// digestStoreFile is the on-disk, forward-compatible serialization: unknown
// fields are ignored by encoding/json's default decode behavior.
type digestStoreFile struct {
	Paths   map[string]pathDigest `json:"paths"`
	Vectors map[string][]string   `json:"vectors"`
}

// DigestStore is the persisted key→digest mapping consulted by the hash
// freshness policy. It caches per-path content digests
// and records, per target, the input-digest vector observed at the last
// successful build.
type DigestStore struct {
	dir     string // working directory the store lives under
	paths   map[string]pathDigest
	vectors map[string][]string
}

// LoadDigestStore reads the digest store for workDir, returning an empty
// store if none exists yet.
func LoadDigestStore(workDir string) (*DigestStore, error) {
	s := &DigestStore{dir: workDir, paths: map[string]pathDigest{}, vectors: map[string][]string{}}
	b, err := os.ReadFile(filepath.Join(workDir, DigestStorePath))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading digest store: %w", err)
	}
	var f digestStoreFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing digest store: %w", err)
	}
	if f.Paths != nil {
		s.paths = f.Paths
	}
	if f.Vectors != nil {
		s.vectors = f.Vectors
	}
	return s, nil
}

// Save persists the store atomically.
func (s *DigestStore) Save() error {
	full := filepath.Join(s.dir, DigestStorePath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating digest store dir: %w", err)
	}
	b, err := json.MarshalIndent(digestStoreFile{Paths: s.paths, Vectors: s.vectors}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling digest store: %w", err)
	}
	return writeFileAtomic(full, b, 0o644)
}

// Purge clears the store's contents in memory; the caller is responsible
// for calling Save (or removing the file) to make the purge durable.
func (s *DigestStore) Purge() {
	s.paths = map[string]pathDigest{}
	s.vectors = map[string][]string{}
}

// Digest returns the SHA-256 content digest of path, reusing a cached value
// when the file's size and mtime match what was last observed.
func (s *DigestStore) Digest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if cached, ok := s.paths[path]; ok && cached.Size == info.Size() && cached.MTime.Equal(info.ModTime()) {
		return cached.Digest, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	d := hex.EncodeToString(h.Sum(nil))
	s.paths[path] = pathDigest{Digest: d, Size: info.Size(), MTime: info.ModTime()}
	return d, nil
}

// Vector returns the recorded input-digest vector for target, if any.
func (s *DigestStore) Vector(target string) ([]string, bool) {
	v, ok := s.vectors[target]
	return v, ok
}

// RecordVector stores the input-digest vector observed for target's
// successful build.
func (s *DigestStore) RecordVector(target string, vector []string) {
	cp := make([]string, len(vector))
	copy(cp, vector)
	s.vectors[target] = cp
}

// writeFileAtomic writes data to path via a temp file in the same directory
// plus rename, so a crash mid-write never leaves the digest store holding a
// truncated JSON file that would fail to parse on the next build. The
// digest store is weave's only durable state across runs, so a torn write
// here is worse than the cost of the fsync: it turns a missed incremental
// rebuild into a parse error that blocks every subsequent build until the
// store is deleted.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
