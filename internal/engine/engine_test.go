package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-service/internal/models"
	"github.com/trogers1052/portfolio-service/internal/storage"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f *fakePrices) GlobalQuote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.price, nil
}

// memStore is an in-memory PortfolioStore with switchable fault injection.
type memStore struct {
	mu          sync.Mutex
	positions   map[string]models.Position
	orders      []models.Order
	nextOrderID int
	failExecute error
	// executeGate, when set for a ticker, blocks ExecuteOrder until released.
	executeGate map[string]chan struct{}
}

func newMemStore() *memStore {
	return &memStore{positions: map[string]models.Position{}}
}

func key(userID, ticker string) string { return userID + ":" + ticker }

func (m *memStore) GetPosition(ctx context.Context, userID, ticker string) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[key(userID, ticker)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Position{}
	for _, p := range m.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) ExecuteOrder(ctx context.Context, pos *models.Position, order *models.Order) (string, error) {
	m.mu.Lock()
	gate := m.executeGate[order.Ticker]
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExecute != nil {
		return "", m.failExecute
	}

	if pos.Quantity.IsZero() {
		delete(m.positions, key(pos.UserID, pos.Ticker))
	} else {
		m.positions[key(pos.UserID, pos.Ticker)] = *pos
	}

	m.nextOrderID++
	order.ID = strconv.Itoa(m.nextOrderID)
	order.CreatedAt = time.Now()
	m.orders = append(m.orders, *order)
	return order.ID, nil
}

func (m *memStore) snapshot() (map[string]models.Position, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]models.Position, len(m.positions))
	for k, v := range m.positions {
		cp[k] = v
	}
	return cp, len(m.orders)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ---------------------------------------------------------------------------
// Cost-basis accounting
// ---------------------------------------------------------------------------

func TestApplyOrder_BuyAccumulates(t *testing.T) {
	store := newMemStore()
	prices := &fakePrices{price: dec("100")}
	eng := New(store, prices)

	pos, order, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionBuy, dec("10"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec("10")), "quantity = %s", pos.Quantity)
	assert.True(t, pos.CostPrice.Equal(dec("1000")), "cost = %s", pos.CostPrice)
	assert.Equal(t, "1", order.ID)
	assert.True(t, order.Price.Equal(dec("100")))

	prices.price = dec("120")
	pos, _, err = eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionBuy, dec("5"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec("15")), "quantity = %s", pos.Quantity)
	assert.True(t, pos.CostPrice.Equal(dec("1600")), "cost = %s", pos.CostPrice)
}

func TestApplyOrder_SellShrinksCostProportionally(t *testing.T) {
	store := newMemStore()
	store.positions[key("1", "AAPL")] = models.Position{
		UserID: "1", Ticker: "AAPL", Quantity: dec("10"), CostPrice: dec("1000"),
	}
	eng := New(store, &fakePrices{price: dec("250")})

	pos, order, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionSell, dec("4"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec("6")), "quantity = %s", pos.Quantity)
	assert.True(t, pos.CostPrice.Equal(dec("600")), "cost = %s", pos.CostPrice)
	// Average cost per share is unchanged by the sale.
	assert.True(t, pos.AverageCost().Equal(dec("100")), "avg = %s", pos.AverageCost())
	// The order records the market price, which never feeds the basis.
	assert.True(t, order.Price.Equal(dec("250")))
}

func TestApplyOrder_SellAllClosesPosition(t *testing.T) {
	store := newMemStore()
	store.positions[key("1", "AAPL")] = models.Position{
		UserID: "1", Ticker: "AAPL", Quantity: dec("10"), CostPrice: dec("1000"),
	}
	eng := New(store, &fakePrices{price: dec("90")})

	pos, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionSell, dec("10"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.CostPrice.IsZero())

	_, err = store.GetPosition(context.Background(), "1", "AAPL")
	assert.ErrorIs(t, err, storage.ErrNotFound, "closed position should be removed")
}

func TestApplyOrder_InsufficientHoldings(t *testing.T) {
	store := newMemStore()
	store.positions[key("1", "AAPL")] = models.Position{
		UserID: "1", Ticker: "AAPL", Quantity: dec("5"), CostPrice: dec("500"),
	}
	eng := New(store, &fakePrices{price: dec("100")})

	_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionSell, dec("10"))
	assert.ErrorIs(t, err, ErrInsufficientHoldings)

	// Position unchanged, no order recorded.
	positions, orders := store.snapshot()
	assert.True(t, positions[key("1", "AAPL")].Quantity.Equal(dec("5")))
	assert.Zero(t, orders)
}

func TestApplyOrder_SellWithNothingHeld(t *testing.T) {
	eng := New(newMemStore(), &fakePrices{price: dec("100")})

	_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionSell, dec("1"))
	assert.ErrorIs(t, err, ErrInsufficientHoldings)
}

// ---------------------------------------------------------------------------
// Validation and dependency failures
// ---------------------------------------------------------------------------

func TestApplyOrder_InvalidAction(t *testing.T) {
	store := newMemStore()
	eng := New(store, &fakePrices{price: dec("100")})

	_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", "hold", dec("1"))
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, orders := store.snapshot()
	assert.Zero(t, orders)
}

func TestApplyOrder_InvalidQuantity(t *testing.T) {
	eng := New(newMemStore(), &fakePrices{price: dec("100")})

	for _, q := range []string{"0", "-1"} {
		_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionBuy, dec(q))
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %s", q)
	}
}

func TestApplyOrder_PriceUnavailable(t *testing.T) {
	store := newMemStore()
	oracleErr := errors.New("no quote for symbol")
	eng := New(store, &fakePrices{err: oracleErr})

	_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionBuy, dec("1"))
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.ErrorIs(t, err, oracleErr)

	_, orders := store.snapshot()
	assert.Zero(t, orders)
}

func TestApplyOrder_PersistenceFailureLeavesNoState(t *testing.T) {
	store := newMemStore()
	store.failExecute = errors.New("disk on fire")
	eng := New(store, &fakePrices{price: dec("100")})

	_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionBuy, dec("10"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientHoldings)

	positions, orders := store.snapshot()
	assert.Empty(t, positions)
	assert.Zero(t, orders)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestApplyOrder_ConcurrentSameKeyConverges(t *testing.T) {
	const n = 50

	store := newMemStore()
	eng := New(store, &fakePrices{price: dec("100")})

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := eng.ApplyOrder(context.Background(), "1", "AAPL", models.ActionBuy, dec("1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pos, err := store.GetPosition(context.Background(), "1", "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec(fmt.Sprint(n))), "quantity = %s", pos.Quantity)
	assert.True(t, pos.CostPrice.Equal(dec("100").Mul(dec(fmt.Sprint(n)))), "cost = %s", pos.CostPrice)

	_, orders := store.snapshot()
	assert.Equal(t, n, orders)
}

func TestApplyOrder_DisjointKeysDoNotBlock(t *testing.T) {
	store := newMemStore()
	gate := make(chan struct{})
	store.executeGate = map[string]chan struct{}{"SLOW": gate}
	eng := New(store, &fakePrices{price: dec("100")})

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _, err := eng.ApplyOrder(context.Background(), "1", "SLOW", models.ActionBuy, dec("1"))
		assert.NoError(t, err)
	}()

	// While the SLOW order is stuck in its store write, an order for a
	// different key must complete.
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		_, _, err := eng.ApplyOrder(context.Background(), "1", "FAST", models.ActionBuy, dec("1"))
		assert.NoError(t, err)
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("order on a different key was blocked")
	}

	close(gate)
	select {
	case <-slowDone:
	case <-time.After(2 * time.Second):
		t.Fatal("gated order never finished")
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var km keyedMutex

	unlock := km.lock("a")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}
