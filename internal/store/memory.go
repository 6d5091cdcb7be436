package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRecords is an in-process Records implementation for tests and
// single-node runs without external storage.
type MemoryRecords struct {
	records  map[string]*Record
	audioIdx map[string]string

	lock sync.RWMutex
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		records:  make(map[string]*Record),
		audioIdx: make(map[string]string),
	}
}

func (m *MemoryRecords) Create(ctx context.Context, rec *Record) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return fmt.Errorf("record '%s' exists", rec.ID)
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	m.records[rec.ID] = &cp
	if rec.AudioID != "" {
		m.audioIdx[rec.AudioID] = rec.ID
	}
	return nil
}

func (m *MemoryRecords) Update(ctx context.Context, rec *Record) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	old, ok := m.records[rec.ID]
	if !ok {
		return fmt.Errorf("record '%s': %w", rec.ID, ErrNotFound)
	}
	rec.CreatedAt = old.CreatedAt
	rec.UpdatedAt = time.Now()
	cp := *rec
	m.records[rec.ID] = &cp
	if rec.AudioID != "" {
		m.audioIdx[rec.AudioID] = rec.ID
	}
	return nil
}

func (m *MemoryRecords) Get(ctx context.Context, id string) (*Record, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record '%s': %w", id, ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryRecords) GetByAudioID(ctx context.Context, audioID string) (*Record, error) {
	m.lock.RLock()
	id, ok := m.audioIdx[audioID]
	m.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("audio '%s': %w", audioID, ErrNotFound)
	}
	return m.Get(ctx, id)
}

func (m *MemoryRecords) Delete(ctx context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	if rec.AudioID != "" {
		delete(m.audioIdx, rec.AudioID)
	}
	delete(m.records, id)
	return nil
}

// MemoryBlobs is an in-process Blobs implementation.
type MemoryBlobs struct {
	data map[string][]byte
	lock sync.RWMutex
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{data: make(map[string][]byte)}
}

func (m *MemoryBlobs) Put(ctx context.Context, id string, data []byte, mime string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[id] = cp
	return nil
}

func (m *MemoryBlobs) Get(ctx context.Context, id string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("blob '%s': %w", id, ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryBlobs) Delete(ctx context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data, id)
	return nil
}
