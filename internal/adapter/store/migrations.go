package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"docqa/config"
	"docqa/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyEmbeddingHash = []byte("embedding_hash")
)

// SchemaInfo stores schema version and the embedding fingerprint.
type SchemaInfo struct {
	Version       int    `json:"version"`
	EmbeddingHash string `json:"embedding_hash"`
}

func (s *BoltIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keySchemaVersion); v != nil {
			if err := json.Unmarshal(v, &info.Version); err != nil {
				return fmt.Errorf("bad schema version: %w", err)
			}
		}
		if v := b.Get(keyEmbeddingHash); v != nil {
			info.EmbeddingHash = string(v)
		}
		return nil
	})
	return &info, err
}

func (s *BoltIndex) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		v, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, v); err != nil {
			return err
		}
		return b.Put(keyEmbeddingHash, []byte(info.EmbeddingHash))
	})
}

// EmbeddingFingerprint hashes the settings that make stored vectors comparable.
// Vectors written under a different fingerprint live in a different space.
func EmbeddingFingerprint(cfg *config.Config) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration reports whether the file needs a schema bump or a full rebuild.
func (s *BoltIndex) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.EmbeddingHash != "" && info.EmbeddingHash != EmbeddingFingerprint(cfg) && s.Count() > 0 {
		result.NeedsRebuild = true
		result.Reason = "embedding model changed; stored vectors are not comparable"
	}
	return result, nil
}

// Migrate stamps the current schema version and embedding fingerprint.
func (s *BoltIndex) Migrate(cfg *config.Config) error {
	return s.SetSchemaInfo(&SchemaInfo{
		Version:       CurrentSchemaVersion,
		EmbeddingHash: EmbeddingFingerprint(cfg),
	})
}

// Clear removes every stored chunk (for rebuild).
func (s *BoltIndex) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketChunks); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketChunks)
		return err
	})
	if err != nil {
		return err
	}
	s.records = make(map[string]domain.ChunkRecord)
	s.dimension = 0
	return nil
}
