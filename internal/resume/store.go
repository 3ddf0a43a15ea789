// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resume persists viewing bookmarks per principal and asset. The
// backend simulator reads them back into entitlements as lastViewedOffset and
// lastViewedTime.
package resume

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// Bookmark is the last viewed point of an asset. Either field may be unset.
type Bookmark struct {
	OffsetMs  *int64    `json:"offsetMs,omitempty"`
	TimeMs    *int64    `json:"timeMs,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Empty reports whether the bookmark carries no position.
func (b *Bookmark) Empty() bool {
	return b == nil || (b.OffsetMs == nil && b.TimeMs == nil)
}

// Store persists bookmarks. Get returns (nil, nil) when nothing is stored.
type Store interface {
	Put(ctx context.Context, principalID, assetID string, b *Bookmark) error
	Get(ctx context.Context, principalID, assetID string) (*Bookmark, error)
	Delete(ctx context.Context, principalID, assetID string) error
	Close() error
}

// Checker is implemented by stores that can verify their backing storage.
type Checker interface {
	Check(ctx context.Context) error
}

const (
	BackendMemory = "memory"
	BackendSqlite = "sqlite"
	BackendFile   = "file"
)

// NewStore creates a store for backend. sqlite and file need dir; without it
// they degrade to memory.
func NewStore(ctx context.Context, backend, dir string) (Store, error) {
	if backend == "" {
		backend = BackendSqlite
	}

	switch backend {
	case BackendSqlite:
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(ctx, filepath.Join(dir, "resume.sqlite"))
	case BackendFile:
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewFileStore(filepath.Join(dir, "resume.json"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown resume store backend: %s (supported: sqlite, file, memory)", backend)
	}
}

// MemoryStore implements Store using a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Bookmark
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Bookmark)}
}

func (s *MemoryStore) Put(_ context.Context, principalID, assetID string, b *Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[compositeKey(principalID, assetID)] = b.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, principalID, assetID string) (*Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if val, ok := s.data[compositeKey(principalID, assetID)]; ok {
		c := val.clone()
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) Delete(_ context.Context, principalID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, compositeKey(principalID, assetID))
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = map[string]Bookmark{}
	s.mu.Unlock()
	return nil
}

func (b *Bookmark) clone() Bookmark {
	out := Bookmark{UpdatedAt: b.UpdatedAt}
	if b.OffsetMs != nil {
		v := *b.OffsetMs
		out.OffsetMs = &v
	}
	if b.TimeMs != nil {
		v := *b.TimeMs
		out.TimeMs = &v
	}
	return out
}

func compositeKey(principal, asset string) string {
	return principal + "\x00" + asset
}
