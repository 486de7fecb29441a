// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package storage persists embedding model snapshots.
//
// The trainable algorithm families (deep_learning and
// matrix_factorization) score items from learned user and item vectors.
// An external training job publishes those vectors as versioned snapshots;
// the retraining maintenance job loads the newest snapshot into the live
// embedding source.
//
// # Storage Format
//
// Snapshots are gob-encoded, gzip-compressed and checksummed:
//
//	filename: {model_name}_v{version}.gob.gz
//
//	structure:
//	  - Metadata (ModelMetadata)
//	  - CompressedData (gzip-compressed gob-encoded EmbeddingSnapshot)
//
// Files are written to a temporary name and renamed, so a reader never
// observes a partial snapshot.
//
// # Usage Example
//
//	models, err := storage.NewStore("/data/models")
//	if err != nil {
//	    return err
//	}
//
//	meta, err := models.Save(ctx, "embedding", &storage.EmbeddingSnapshot{
//	    Dimensions: 2,
//	    Users:      map[string][]float64{"u1": {0.1, 0.9}},
//	    Items:      map[string][]float64{"b1": {0.2, 0.8}},
//	}, storage.ModelMetadata{TrainedAt: trainedAt})
//
//	snap, meta, err := models.Load(ctx, "embedding", 0) // 0 = latest version
//
// # Data Integrity
//
// Snapshots are validated on load using SHA-256 checksums of the
// uncompressed data. A mismatch fails the load rather than serving
// corrupted vectors.
//
// # Thread Safety
//
// Save and Prune take the write lock; concurrent loads share the read
// lock.
package storage
