// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

type fileSnapshot struct {
	Version   int                 `json:"version"`
	Bookmarks map[string]fileItem `json:"bookmarks"`
}

type fileItem struct {
	Principal string   `json:"principal"`
	Asset     string   `json:"asset"`
	Bookmark  Bookmark `json:"bookmark"`
}

// FileStore keeps bookmarks in memory and rewrites a JSON snapshot on every
// mutation. The snapshot is replaced atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]fileItem
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create resume store dir: %w", err)
	}
	s := &FileStore{path: path, data: make(map[string]fileItem)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read resume snapshot: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode resume snapshot %s: %w", path, err)
	}
	for k, v := range snap.Bookmarks {
		s.data[k] = v
	}
	return s, nil
}

func (s *FileStore) Put(_ context.Context, principalID, assetID string, b *Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := compositeKey(principalID, assetID)
	prev, had := s.data[key]
	s.data[key] = fileItem{Principal: principalID, Asset: assetID, Bookmark: b.clone()}
	if err := s.flushLocked(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, principalID, assetID string) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.data[compositeKey(principalID, assetID)]; ok {
		c := item.Bookmark.clone()
		return &c, nil
	}
	return nil, nil
}

func (s *FileStore) Delete(_ context.Context, principalID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := compositeKey(principalID, assetID)
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) flushLocked() error {
	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending resume snapshot: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fileSnapshot{Version: 1, Bookmarks: s.data}); err != nil {
		return fmt.Errorf("write resume snapshot: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace resume snapshot: %w", err)
	}
	return nil
}
