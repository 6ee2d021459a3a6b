package server

import (
	"sync"

	"github.com/clearclaim/billaudit/internal/entity"
)

// auditLog keeps the most recent assessments in memory so confirm calls can
// resolve a fingerprint back to its prepared record and the export endpoint
// has something to render. Capped FIFO.
type auditLog struct {
	mu      sync.Mutex
	cap     int
	entries []*entity.AssessedBill
	byFP    map[string]*entity.AssessedBill
}

func newAuditLog(capacity int) *auditLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &auditLog{
		cap:  capacity,
		byFP: make(map[string]*entity.AssessedBill),
	}
}

func (a *auditLog) add(b *entity.AssessedBill) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == a.cap {
		evicted := a.entries[0]
		a.entries = a.entries[1:]
		if a.byFP[evicted.Fingerprint.String()] == evicted {
			delete(a.byFP, evicted.Fingerprint.String())
		}
	}
	a.entries = append(a.entries, b)
	a.byFP[b.Fingerprint.String()] = b
}

func (a *auditLog) byFingerprint(hexFP string) (*entity.AssessedBill, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.byFP[hexFP]
	return b, ok
}

func (a *auditLog) snapshot() []*entity.AssessedBill {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*entity.AssessedBill, len(a.entries))
	copy(out, a.entries)
	return out
}
