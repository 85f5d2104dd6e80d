package valuation

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"homeworth/server/internal/source"
)

var demoPropertyTypes = []string{"Single Family", "Condo", "Townhouse", "Multi-Family"}

// DemoClient generates plausible random payloads instead of calling an API. It lets the
// service run without valuation credentials.
type DemoClient struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewDemoClient(seed int64) *DemoClient {
	return &DemoClient{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (d *DemoClient) Kind() source.Kind {
	return source.KindValuation
}

func (d *DemoClient) Fetch(ctx context.Context, address string) (source.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	value := 100000 + d.rnd.Intn(900001)
	lastSale := d.now().AddDate(0, 0, -d.rnd.Intn(3650))

	history := make([]any, 0, 3)
	saleDate := lastSale
	salePrice := value
	for i := 0; i < 1+d.rnd.Intn(3); i++ {
		salePrice = salePrice * (80 + d.rnd.Intn(15)) / 100
		history = append(history, map[string]any{
			"date":  saleDate.Format("2006-01-02"),
			"price": salePrice,
		})
		saleDate = saleDate.AddDate(-(1 + d.rnd.Intn(6)), 0, 0)
	}

	return source.Payload{
		"address":         address,
		"estimated_value": value,
		"currency":        "USD",
		"property_type":   demoPropertyTypes[d.rnd.Intn(len(demoPropertyTypes))],
		"bedrooms":        1 + d.rnd.Intn(5),
		"bathrooms":       float64(2+d.rnd.Intn(7)) / 2,
		"square_footage":  600 + d.rnd.Intn(3400),
		"lot_size":        1500 + d.rnd.Intn(18500),
		"year_built":      1900 + d.rnd.Intn(124),
		"last_sale_date":  lastSale.Format("2006-01-02"),
		"sale_history":    history,
	}, nil
}
