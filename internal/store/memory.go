package store

import (
	"context"
	"sync"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

// Memory is the in-process store: a mutex-guarded map with check-and-insert
// under the lock. It backs tests and single-node deployments.
type Memory struct {
	mu      sync.RWMutex
	records map[entity.Fingerprint]*entity.BillRecord
	byKey   map[string][]entity.Fingerprint
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[entity.Fingerprint]*entity.BillRecord),
		byKey:   make(map[string][]entity.Fingerprint),
	}
}

func (m *Memory) Lookup(_ context.Context, fp entity.Fingerprint) (*entity.BillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[fp]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) Candidates(_ context.Context, keys []string) ([]*entity.BillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.BillRecord
	for _, key := range keys {
		for _, fp := range m.byKey[key] {
			if rec, ok := m.records[fp]; ok {
				cp := *rec
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *Memory) Commit(_ context.Context, rec *entity.BillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Fingerprint]; ok {
		return common.ErrAlreadyExists
	}
	cp := *rec
	m.records[rec.Fingerprint] = &cp
	m.byKey[rec.SecondaryKey] = append(m.byKey[rec.SecondaryKey], rec.Fingerprint)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of committed records. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
