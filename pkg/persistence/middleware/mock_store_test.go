package middleware_test

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
// It runs the same validation as real stores so envelopes must be well-formed.
type MockStore struct {
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

func (s *MockStore) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	data, err := domain.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}
	s.data[threadID] = data
	return nil
}

func (s *MockStore) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	data, ok := s.data[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	return domain.DecodeCheckpoint(threadID, data)
}

func (s *MockStore) Delete(ctx context.Context, threadID string) error {
	delete(s.data, threadID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.CheckpointStore = (*MockStore)(nil)
