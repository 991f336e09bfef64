package repositories

import (
	"context"
	"sync"

	"github.com/libshelf/accounts/internal/models"
)

// OTPMemoryStore keeps live password-reset codes in process memory,
// keyed by user id. Save replaces any prior record for the same user.
type OTPMemoryStore struct {
	mu      sync.Mutex
	records map[int]*models.OTPRecord
}

func NewOTPMemoryStore() *OTPMemoryStore {
	return &OTPMemoryStore{records: make(map[int]*models.OTPRecord)}
}

func (s *OTPMemoryStore) Save(ctx context.Context, rec *models.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.UserID] = &cp
	return nil
}

func (s *OTPMemoryStore) Get(ctx context.Context, userID int) (*models.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, models.ErrOTPNotFound
	}

	cp := *rec
	return &cp, nil
}

func (s *OTPMemoryStore) Delete(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// DeleteExpired sweeps records past their expiry. Called by the
// background cleanup manager.
func (s *OTPMemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.IsExpired() {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}
