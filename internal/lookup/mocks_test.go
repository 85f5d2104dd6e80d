package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"homeworth/server/internal/database"
	"homeworth/server/internal/models"
	"homeworth/server/internal/source"
)

type MockFetcher struct {
	mock.Mock
	kind source.Kind
}

func (m *MockFetcher) Fetch(ctx context.Context, key string) (source.Payload, error) {
	args := m.Called(ctx, key)
	payload, _ := args.Get(0).(source.Payload)
	return payload, args.Error(1)
}

func (m *MockFetcher) Kind() source.Kind {
	return m.kind
}

type MockContextSource struct {
	mock.Mock
	name string
}

func (m *MockContextSource) Name() string { return m.name }

func (m *MockContextSource) Facts(ctx context.Context, p *models.Property) (map[string]string, error) {
	args := m.Called(ctx, p)
	facts, _ := args.Get(0).(map[string]string)
	return facts, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyPriceChange(p *models.Property, previous, current float64) error {
	args := m.Called(p, previous, current)
	return args.Error(0)
}

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewTestDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
