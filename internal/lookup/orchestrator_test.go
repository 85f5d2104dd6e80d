package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"homeworth/server/internal/metrics"
	"homeworth/server/internal/source"
)

func valuationPayload() source.Payload {
	return source.Payload{
		"address":         "123 Main St, Austin, TX 78701",
		"city":            "Austin",
		"state":           "TX",
		"zip":             "78701",
		"bedrooms":        3,
		"bathrooms":       2.5,
		"square_footage":  "1,850",
		"property_type":   "Single Family",
		"estimated_value": "$520,000",
		"sale_history":    []any{map[string]any{"date": "2019-05-01", "price": 410000}},
		"context":         map[string]any{"school_rating": 8},
	}
}

func TestGetOrCreateMissThenHit(t *testing.T) {
	db := newTestDB(t)
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "123 Main St, Austin, TX 78701").Return(valuationPayload(), nil).Once()

	m, err := metrics.NewLookupMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	o := NewOrchestrator(db, fetcher, m, nil)
	ctx := context.Background()

	first, err := o.GetOrCreate(ctx, "123 Main St, Austin, TX 78701")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.NotZero(t, first.ID)
	require.NotNil(t, first.Value)
	assert.Equal(t, 520000.0, *first.Value)
	require.NotNil(t, first.Currency)
	assert.Equal(t, "USD", *first.Currency)
	require.NotNil(t, first.Property)
	assert.Equal(t, "Austin", first.Property.City)

	// differently formatted address resolves to the same key
	second, err := o.GetOrCreate(ctx, "  123 main st ,austin,  TX 78701 ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, *first.Value, *second.Value)

	fetcher.AssertNumberOfCalls(t, "Fetch", 1)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProperties)
	assert.Equal(t, int64(1), stats.TotalEstimates)
	assert.Equal(t, int64(1), stats.TotalPrices)
	assert.Equal(t, int64(1), stats.TotalFacts)

	assert.Equal(t, 1, testutil.CollectAndCount(m, "homeworth_lookup_hits_total"))
}

func TestGetOrCreateEmptySource(t *testing.T) {
	db := newTestDB(t)
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "nowhere").Return(nil, source.ErrEmpty).Once()

	o := NewOrchestrator(db, fetcher, nil, nil)
	_, err := o.GetOrCreate(context.Background(), "nowhere")
	require.ErrorIs(t, err, ErrNotFound)

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProperties)
	assert.Zero(t, stats.TotalEstimates)
}

func TestGetOrCreateUpstreamFailure(t *testing.T) {
	db := newTestDB(t)
	cause := errors.New("connection refused")
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "1 elm st").Return(nil, cause).Once()

	o := NewOrchestrator(db, fetcher, nil, nil)
	_, err := o.GetOrCreate(context.Background(), "1 elm st")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, ErrNotFound)

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEstimates)
}

func TestGetOrCreateNormalizationFailure(t *testing.T) {
	db := newTestDB(t)
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "1 elm st").Return(source.Payload{}, nil).Once()

	o := NewOrchestrator(db, fetcher, nil, nil)
	_, err := o.GetOrCreate(context.Background(), "1 elm st")

	var normErr *NormalizationError
	require.ErrorAs(t, err, &normErr)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreateEmptyAddress(t *testing.T) {
	fetcher := &MockFetcher{kind: source.KindValuation}
	o := NewOrchestrator(newTestDB(t), fetcher, nil, nil)

	_, err := o.GetOrCreate(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNotFound)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGetOrCreateValueOnlyPayload(t *testing.T) {
	db := newTestDB(t)
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "9 oak ave").Return(source.Payload{"price": 300000}, nil).Once()

	o := NewOrchestrator(db, fetcher, nil, nil)
	est, err := o.GetOrCreate(context.Background(), "9 oak ave")
	require.NoError(t, err)
	assert.Nil(t, est.PropertyID, "no structural facts means a standalone estimate")
	assert.Equal(t, "9 oak ave", est.Address)

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProperties)
	assert.Equal(t, int64(1), stats.TotalEstimates)
}

func TestGetOrCreateCancelledBeforePersist(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "123 Main St").
		Run(func(mock.Arguments) { cancel() }).
		Return(valuationPayload(), nil).Once()

	o := NewOrchestrator(db, fetcher, nil, nil)
	_, err := o.GetOrCreate(ctx, "123 Main St")
	require.ErrorIs(t, err, context.Canceled)

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProperties)
	assert.Zero(t, stats.TotalEstimates)
}

func TestGetOrCreateConcurrentSameKey(t *testing.T) {
	db := newTestDB(t)
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, "123 Main St").Return(valuationPayload(), nil)

	o := NewOrchestrator(db, fetcher, nil, nil)

	var wg sync.WaitGroup
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.GetOrCreate(context.Background(), "123 Main St")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProperties, "racing misses share one property")
	assert.GreaterOrEqual(t, stats.TotalEstimates, int64(1))
	assert.Equal(t, int64(1), stats.TotalPrices, "same value is recorded once")
}

func TestEvict(t *testing.T) {
	db := newTestDB(t)
	fetcher := &MockFetcher{kind: source.KindValuation}
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(valuationPayload(), nil).Twice()

	o := NewOrchestrator(db, fetcher, nil, nil)
	ctx := context.Background()

	_, err := o.GetOrCreate(ctx, "123 Main St")
	require.NoError(t, err)

	n, err := o.Evict(ctx, "123 MAIN ST")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = o.GetOrCreate(ctx, "123 Main St")
	require.NoError(t, err)
	fetcher.AssertNumberOfCalls(t, "Fetch", 2)

	_, err = o.Evict(ctx, "")
	assert.Error(t, err)
}
