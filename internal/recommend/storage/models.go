// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoModel is returned when no snapshot exists for a model name.
var ErrNoModel = errors.New("no model snapshot")

const fileSuffix = ".gob.gz"

// ModelMetadata contains information about a stored snapshot.
type ModelMetadata struct {
	// Name is the algorithm config name (e.g., "embedding").
	Name string `json:"name"`

	// Version is the snapshot version (monotonically increasing).
	Version int `json:"version"`

	// TrainedAt is when the producing job trained the model.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the snapshot was saved.
	SavedAt time.Time `json:"saved_at"`

	// UserCount is the number of user vectors.
	UserCount int `json:"user_count"`

	// ItemCount is the number of item vectors.
	ItemCount int `json:"item_count"`

	// Checksum is the SHA-256 checksum of the uncompressed data.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed snapshot size in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// EmbeddingSnapshot is the serializable state of a trained embedding
// model.
type EmbeddingSnapshot struct {
	Dimensions int
	Users      map[string][]float64
	Items      map[string][]float64
}

// Validate checks that every vector has the declared dimensionality.
func (s *EmbeddingSnapshot) Validate() error {
	if s.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", s.Dimensions)
	}
	for id, v := range s.Users {
		if len(v) != s.Dimensions {
			return fmt.Errorf("user %s has %d dimensions, want %d", id, len(v), s.Dimensions)
		}
	}
	for id, v := range s.Items {
		if len(v) != s.Dimensions {
			return fmt.Errorf("item %s has %d dimensions, want %d", id, len(v), s.Dimensions)
		}
	}
	return nil
}

// Store manages snapshot persistence.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// Keep track of latest version per model
	versions map[string]int
}

// NewStore creates a new snapshot store at the given directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}

	files, err := s.listFiles()
	if err != nil {
		return nil, fmt.Errorf("scan existing models: %w", err)
	}
	for name, versions := range files {
		s.versions[name] = versions[0]
	}

	return s, nil
}

// listFiles returns model name -> versions sorted descending.
func (s *Store) listFiles() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		name, version := parseModelFilename(strings.TrimSuffix(entry.Name(), fileSuffix))
		if name == "" {
			continue
		}
		out[name] = append(out[name], version)
	}
	for name := range out {
		sort.Sort(sort.Reverse(sort.IntSlice(out[name])))
	}
	return out, nil
}

// parseModelFilename extracts model name and version from a filename like "embedding_v1".
func parseModelFilename(name string) (modelName string, version int) {
	idx := strings.LastIndex(name, "_v")
	if idx <= 0 {
		return "", 0
	}
	if _, err := fmt.Sscanf(name[idx+2:], "%d", &version); err != nil {
		return "", 0
	}
	return name[:idx], version
}

// storedFile is the on-disk format for snapshot files.
type storedFile struct {
	Metadata       ModelMetadata
	CompressedData []byte
}

// Save stores a snapshot as the next version of name and returns its
// metadata.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, snap *EmbeddingSnapshot, meta ModelMetadata) (*ModelMetadata, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = s.versions[name] + 1
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()
	meta.UserCount = len(snap.Users)
	meta.ItemCount = len(snap.Items)

	// Write to a temp file and rename so readers never see a partial file.
	final := s.modelPath(name, meta.Version)
	tmp := final + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // filename is constructed from trusted name parameter
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	encErr := gob.NewEncoder(f).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()})
	closeErr := f.Close()
	if encErr != nil || closeErr != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("write snapshot file: %w", errors.Join(encErr, closeErr))
	}
	if err := os.Rename(tmp, final); err != nil {
		return nil, fmt.Errorf("publish snapshot file: %w", err)
	}

	s.versions[name] = meta.Version
	return &meta, nil
}

// Load loads a snapshot by name and version. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (*EmbeddingSnapshot, *ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoModel, name)
		}
	}

	f, err := os.Open(s.modelPath(name, version)) //nolint:gosec // filename is constructed from trusted name parameter
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read snapshot file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, checksum)
	}

	var snap EmbeddingSnapshot
	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(&snap); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, &sf.Metadata, nil
}

// GetLatestVersion returns the latest version number for a model.
func (s *Store) GetLatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[name]
	return version, ok
}

// Prune removes old versions of name, keeping the latest keep versions.
// It returns the number of files removed.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return 0, fmt.Errorf("read directory: %w", err)
	}

	removed := 0
	versions := files[name]
	for i := keep; i < len(versions); i++ {
		if err := os.Remove(s.modelPath(name, versions[i])); err != nil {
			return removed, fmt.Errorf("remove %s v%d: %w", name, versions[i], err)
		}
		removed++
	}
	return removed, nil
}

// modelPath returns the file path for a snapshot.
func (s *Store) modelPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, fileSuffix))
}
