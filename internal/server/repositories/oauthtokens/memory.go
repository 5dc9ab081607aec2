package oauthtokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/cryptox"
)

// InMemoryRepository keeps sealed records in process memory. It is used when
// no database is configured and in tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string][]byte)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, userID string, plaintext, key []byte) error {
	blob, err := cryptox.Seal(plaintext, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[userID] = blob
	return nil
}

func (r *InMemoryRepository) Find(ctx context.Context, userID string, key []byte) ([]byte, error) {
	r.mu.RLock()
	blob, ok := r.records[userID]
	r.mu.RUnlock()

	if !ok {
		return nil, common.ErrorNotFound
	}
	return cryptox.Open(blob, key)
}

func (r *InMemoryRepository) Reencrypt(ctx context.Context, oldKey, newKey []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string][]byte, len(r.records))
	for userID, blob := range r.records {
		plain, err := cryptox.Open(blob, oldKey)
		if err != nil {
			return 0, fmt.Errorf("record %s: %w", userID, err)
		}
		sealed, err := cryptox.Seal(plain, newKey)
		common.WipeByteArray(plain)
		if err != nil {
			return 0, err
		}
		next[userID] = sealed
	}

	r.records = next
	return int64(len(next)), nil
}
