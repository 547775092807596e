package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/your-org/attend/internal/models"
)

// MemoryStore is an in-process Store for tests and database-less runs.
// Everything is lost on restart.
type MemoryStore struct {
	mu         sync.Mutex
	identities map[string]models.Identity
	order      []string
	// attendance is keyed by "identityID|date".
	attendance map[string]models.AttendanceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]models.Identity),
		attendance: make(map[string]models.AttendanceRecord),
	}
}

func (s *MemoryStore) CreateIdentity(_ context.Context, ident *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[ident.ID]; ok {
		return fmt.Errorf("identity %q already exists", ident.ID)
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now()
	}
	s.identities[ident.ID] = *ident
	s.order = append(s.order, ident.ID)
	return nil
}

func (s *MemoryStore) LookupIdentity(_ context.Context, identityID string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[identityID]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

func (s *MemoryStore) ListIdentities(_ context.Context) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Identity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.identities[id])
	}
	return out, nil
}

func (s *MemoryStore) SetIdentityActive(_ context.Context, identityID string, active bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[identityID]
	if !ok {
		return false, nil
	}
	ident.Active = active
	s.identities[identityID] = ident
	return true, nil
}

func (s *MemoryStore) RecordIfAbsent(_ context.Context, identityID, date string, checkIn time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identityID + "|" + date
	if _, ok := s.attendance[key]; ok {
		return false, nil
	}
	name := ""
	if ident, ok := s.identities[identityID]; ok {
		name = ident.Name
	}
	s.attendance[key] = models.AttendanceRecord{
		IdentityID: identityID,
		Name:       name,
		Date:       date,
		CheckIn:    checkIn,
		Status:     models.StatusPresent,
	}
	return true, nil
}

func (s *MemoryStore) TodayRecords(_ context.Context, date string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []models.AttendanceRecord
	for _, rec := range s.attendance {
		if rec.Date == date {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *MemoryStore) History(_ context.Context, identityID string, from, to string, limit int) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var records []models.AttendanceRecord
	for _, rec := range s.attendance {
		if rec.IdentityID != identityID {
			continue
		}
		if from != "" && rec.Date < from {
			continue
		}
		if to != "" && rec.Date > to {
			continue
		}
		records = append(records, rec)
	}
	// Newest first, like the Postgres query.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
