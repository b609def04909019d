package gate

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/feedscope/feedscope/model"
)

// MockRemote is a mock implementation of the remote store contract.
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) LatestTimestamp(ctx context.Context, id model.Identity) (*time.Time, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockRemote) UpsertRecord(ctx context.Context, rec model.Record) (time.Time, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockRemote) InsertRows(ctx context.Context, groups []model.RowGroup) error {
	args := m.Called(ctx, groups)
	return args.Error(0)
}

func (m *MockRemote) Close() {
	m.Called()
}
