// internal/state/artifact.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/threadkeeper/internal/types"
)

// ArtifactStore keeps oversized tool output in its own table so event
// payloads carry only a preview and a reference.
type ArtifactStore struct {
	db *sql.DB
}

// NewArtifactStore creates an ArtifactStore over an opened database.
func NewArtifactStore(db *sql.DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// Put stores tool output and returns its artifact id.
func (s *ArtifactStore) Put(ctx context.Context, threadID types.ThreadID, tool, data string) (types.ArtifactID, error) {
	id := types.NewArtifactID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, thread_id, tool, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		string(id), string(threadID), tool, time.Now().UnixNano(), data)
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}
	return id, nil
}

// Get returns the stored data for an artifact.
func (s *ArtifactStore) Get(ctx context.Context, id types.ArtifactID) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM artifacts WHERE id = ?`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", types.ErrArtifactNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("get artifact: %w", err)
	}
	return data, nil
}

// GetMeta returns artifact metadata without the payload.
func (s *ArtifactStore) GetMeta(ctx context.Context, id types.ArtifactID) (*types.ArtifactMeta, error) {
	var (
		meta      types.ArtifactMeta
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, thread_id, tool, created_at FROM artifacts WHERE id = ?`,
		string(id)).Scan(&meta.ID, &meta.ThreadID, &meta.Tool, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact meta: %w", err)
	}
	meta.CreatedAt = time.Unix(0, createdAt)
	return &meta, nil
}
