package repositories

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/libshelf/accounts/internal/models"
)

// VerificationMemoryStore keeps live email-verification records in
// process memory, keyed by user id. Save replaces any prior record for
// the same user, which invalidates the previously issued token.
type VerificationMemoryStore struct {
	mu      sync.Mutex
	records map[int]*models.EmailVerificationRecord
}

func NewVerificationMemoryStore() *VerificationMemoryStore {
	return &VerificationMemoryStore{records: make(map[int]*models.EmailVerificationRecord)}
}

func (s *VerificationMemoryStore) Save(ctx context.Context, rec *models.EmailVerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.UserID] = &cp
	return nil
}

// GetByToken scans for an exact token match using a constant-time
// comparison.
func (s *VerificationMemoryStore) GetByToken(ctx context.Context, token string) (*models.EmailVerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) == 1 {
			cp := *rec
			return &cp, nil
		}
	}

	return nil, models.ErrNotFound
}

func (s *VerificationMemoryStore) Delete(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// DeleteExpired sweeps records past their expiry. Called by the
// background cleanup manager.
func (s *VerificationMemoryStore) DeleteExpired(ctx context.Context) (int, error) {
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
