package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	clientrepo "github.com/smallbiznis/pos/internal/client/repository"
	"github.com/smallbiznis/pos/internal/clock"
	"github.com/smallbiznis/pos/internal/config"
	"github.com/smallbiznis/pos/internal/orgcontext"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	productrepo "github.com/smallbiznis/pos/internal/product/repository"
	"github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/smallbiznis/pos/internal/sale/repository"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type invalidatorSpy struct {
	mu    sync.Mutex
	calls int
}

func (s *invalidatorSpy) Invalidate(context.Context, snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	node  *snowflake.Node
	org   snowflake.ID
	ctx   context.Context
	spy   *invalidatorSpy
	clock *clock.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&productdomain.Product{}, &clientdomain.Client{}, &domain.Sale{}, &domain.SaleLine{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	spy := &invalidatorSpy{}
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Config:      config.Config{Sales: config.SalesConfig{BaseCurrency: "USD"}},
		Repo:        repository.Provide(),
		Products:    productrepo.Provide(),
		Clients:     clientrepo.Provide(),
		Policy:      config.NewStaticSalesPolicyHolder(config.DefaultSalesPolicy()),
		Clock:       clk,
		Invalidator: spy,
	}).(*Service)

	org := node.Generate()
	return &fixture{
		svc:   svc,
		db:    db,
		node:  node,
		org:   org,
		ctx:   orgcontext.WithActorID(orgcontext.WithOrgID(context.Background(), org.Int64()), "cashier-1"),
		spy:   spy,
		clock: clk,
	}
}

func (f *fixture) product(t *testing.T, name, price, taxRate string, stock, minStock int64) productdomain.Product {
	t.Helper()
	p := productdomain.Product{
		ID:        f.node.Generate(),
		OrgID:     f.org,
		Code:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		TaxRate:   decimal.RequireFromString(taxRate),
		Stock:     stock,
		MinStock:  minStock,
		Active:    true,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) stockOf(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var p productdomain.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func cashSale(key string, lines ...domain.CommitLine) domain.CommitRequest {
	return domain.CommitRequest{
		Lines:          lines,
		PaymentMethod:  "cash",
		IdempotencyKey: key,
	}
}

func line(p productdomain.Product, qty int64) domain.CommitLine {
	return domain.CommitLine{ProductID: p.ID.String(), Quantity: qty}
}

func TestCommitPricesAndDecrementsStock(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Cafe 250g", "10.00", "16", 10, 0)

	result, err := f.svc.Commit(f.ctx, cashSale("k-a", line(p, 3)))
	require.NoError(t, err)

	assert.False(t, result.Replayed)
	assert.Equal(t, "30.00", result.Sale.Subtotal)
	assert.Equal(t, "4.80", result.Sale.TaxTotal)
	assert.Equal(t, "34.80", result.Sale.GrandTotal)
	assert.Equal(t, "USD", result.Sale.Currency)
	assert.Equal(t, "cashier-1", result.Sale.CreatedBy)
	assert.Nil(t, result.Sale.ExchangeRate)
	require.Len(t, result.Sale.Lines, 1)
	assert.Equal(t, "Cafe 250g", result.Sale.Lines[0].ProductName)
	assert.Equal(t, "30.00", result.Sale.Lines[0].LineTotal)
	assert.Equal(t, "4.80", result.Sale.Lines[0].TaxAmount)

	assert.Equal(t, int64(7), f.stockOf(t, p.ID))
	assert.Equal(t, 1, f.spy.calls)
}

func TestCommitClampsOversizedDiscount(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Cafe 250g", "10.00", "16", 10, 0)

	req := cashSale("k-b", line(p, 3))
	req.Discount = decimal.RequireFromString("50.00")

	result, err := f.svc.Commit(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "0.00", result.Sale.GrandTotal)
	assert.Equal(t, "50.00", result.Sale.Discount)
	assert.Contains(t, result.Warnings, "discount_exceeds_total")
}

func TestCommitStoresBaseTotalAndRate(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Cafe 250g", "10.00", "16", 10, 0)

	rate := decimal.RequireFromString("36.5")
	req := cashSale("k-d", line(p, 3))
	req.Currency = "ves"
	req.ExchangeRate = &rate

	result, err := f.svc.Commit(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "34.80", result.Sale.GrandTotal)
	assert.Equal(t, "VES", result.Sale.Currency)
	require.NotNil(t, result.Sale.ExchangeRate)
	assert.Equal(t, "36.5", *result.Sale.ExchangeRate)
	require.NotNil(t, result.Sale.ConvertedTotal)
	assert.Equal(t, "1270.20", *result.Sale.ConvertedTotal)

	var stored domain.Sale
	require.NoError(t, f.db.First(&stored, "idempotency_key = ?", "k-d").Error)
	assert.True(t, stored.GrandTotal.Equal(decimal.RequireFromString("34.80")))
	assert.True(t, stored.ExchangeRate.Valid)
	assert.True(t, stored.ExchangeRate.Decimal.Equal(rate))
}

func TestCommitReplaysSameKey(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Cafe 250g", "10.00", "16", 10, 0)

	first, err := f.svc.Commit(f.ctx, cashSale("k-replay", line(p, 2)))
	require.NoError(t, err)

	second, err := f.svc.Commit(f.ctx, cashSale("k-replay", line(p, 2)))
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Sale.ID, second.Sale.ID)
	assert.Equal(t, first.Sale.GrandTotal, second.Sale.GrandTotal)
	assert.Len(t, second.Sale.Lines, 1)
	assert.Equal(t, int64(8), f.stockOf(t, p.ID))
	assert.Equal(t, int64(1), f.count(t, &domain.Sale{}))
	assert.Equal(t, 1, f.spy.calls)
}

func TestCommitRejectsReusedKeyWithDifferentPayload(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Cafe 250g", "10.00", "16", 10, 0)

	_, err := f.svc.Commit(f.ctx, cashSale("k-conflict", line(p, 2)))
	require.NoError(t, err)

	_, err = f.svc.Commit(f.ctx, cashSale("k-conflict", line(p, 5)))
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyConflict)
	assert.Equal(t, int64(8), f.stockOf(t, p.ID))
}

func TestCommitInsufficientStockWritesNothing(t *testing.T) {
	f := setup(t)
	a := f.product(t, "Arroz 1kg", "2.00", "0", 10, 0)
	b := f.product(t, "Aceite 1L", "5.00", "16", 1, 0)

	_, err := f.svc.Commit(f.ctx, cashSale("k-short", line(a, 2), line(b, 2)))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID.String(), stockErr.ProductID)
	assert.Equal(t, int64(2), stockErr.Requested)
	assert.Equal(t, int64(1), stockErr.Available)

	assert.Equal(t, int64(10), f.stockOf(t, a.ID))
	assert.Equal(t, int64(1), f.stockOf(t, b.ID))
	assert.Equal(t, int64(0), f.count(t, &domain.Sale{}))
	assert.Equal(t, int64(0), f.count(t, &domain.SaleLine{}))
	assert.Equal(t, 0, f.spy.calls)
}

func TestCommitSumsRepeatedProductLines(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Arroz 1kg", "2.00", "0", 3, 0)

	_, err := f.svc.Commit(f.ctx, cashSale("k-sum", line(p, 2), line(p, 2)))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	result, err := f.svc.Commit(f.ctx, cashSale("k-sum-ok", line(p, 1), line(p, 2)))
	require.NoError(t, err)
	assert.Len(t, result.Sale.Lines, 2)
	assert.Equal(t, int64(0), f.stockOf(t, p.ID))
}

func TestCommitConcurrentLastUnit(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Ultima unidad", "10.00", "0", 1, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Commit(f.ctx, cashSale(fmt.Sprintf("k-race-%d", i), line(p, 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(0), f.stockOf(t, p.ID))
	assert.Equal(t, int64(1), f.count(t, &domain.Sale{}))
}

func TestCommitReportsLowStock(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Leche 1L", "1.50", "0", 6, 5)

	result, err := f.svc.Commit(f.ctx, cashSale("k-low", line(p, 2)))
	require.NoError(t, err)
	require.Len(t, result.LowStock, 1)
	assert.Equal(t, p.ID.String(), result.LowStock[0].ProductID)
	assert.Equal(t, int64(4), result.LowStock[0].Stock)
}

func TestCommitUnknownOrInactiveProduct(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Descontinuado", "1.00", "0", 5, 0)
	require.NoError(t, f.db.Model(&productdomain.Product{}).Where("id = ?", p.ID).Update("active", false).Error)

	_, err := f.svc.Commit(f.ctx, cashSale("k-inactive", line(p, 1)))
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	missing := domain.CommitLine{ProductID: f.node.Generate().String(), Quantity: 1}
	_, err = f.svc.Commit(f.ctx, cashSale("k-missing", missing))
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))
}

func TestCommitWithClient(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Pan", "1.00", "0", 5, 0)
	client := clientdomain.Client{ID: f.node.Generate(), OrgID: f.org, Name: "Maria", Classification: clientdomain.ClassificationRegular}
	require.NoError(t, f.db.Create(&client).Error)

	clientID := client.ID.String()
	req := cashSale("k-client", line(p, 1))
	req.ClientID = &clientID
	result, err := f.svc.Commit(f.ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result.Sale.ClientID)
	assert.Equal(t, clientID, *result.Sale.ClientID)

	unknown := f.node.Generate().String()
	req = cashSale("k-client-missing", line(p, 1))
	req.ClientID = &unknown
	_, err = f.svc.Commit(f.ctx, req)
	require.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestCommitValidation(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Pan", "1.00", "0", 5, 0)

	negative := decimal.RequireFromString("-1")
	badClient := "abc"
	cases := []struct {
		name string
		mut  func(*domain.CommitRequest)
		want error
	}{
		{"missing key", func(r *domain.CommitRequest) { r.IdempotencyKey = " " }, domain.ErrInvalidIdempotencyKey},
		{"long key", func(r *domain.CommitRequest) { r.IdempotencyKey = strings.Repeat("k", 129) }, domain.ErrInvalidIdempotencyKey},
		{"empty cart", func(r *domain.CommitRequest) { r.Lines = nil }, domain.ErrEmptyCart},
		{"zero quantity", func(r *domain.CommitRequest) { r.Lines[0].Quantity = 0 }, domain.ErrInvalidQuantity},
		{"bad product id", func(r *domain.CommitRequest) { r.Lines[0].ProductID = "x" }, domain.ErrInvalidProductID},
		{"bad client id", func(r *domain.CommitRequest) { r.ClientID = &badClient }, domain.ErrInvalidClientID},
		{"payment method", func(r *domain.CommitRequest) { r.PaymentMethod = "barter" }, domain.ErrInvalidPaymentMethod},
		{"currency", func(r *domain.CommitRequest) { r.Currency = "DOLLARS" }, domain.ErrInvalidCurrency},
		{"missing rate", func(r *domain.CommitRequest) { r.Currency = "VES" }, domain.ErrInvalidExchangeRate},
		{"negative discount", func(r *domain.CommitRequest) { r.Discount = negative }, domain.ErrInvalidDiscount},
		{"negative shipping", func(r *domain.CommitRequest) { r.Shipping = negative }, domain.ErrInvalidShipping},
		{"notes", func(r *domain.CommitRequest) { r.Notes = strings.Repeat("n", 1001) }, domain.ErrInvalidNotes},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := cashSale("k-validation", line(p, 1))
			tc.mut(&req)
			_, err := f.svc.Commit(f.ctx, req)
			require.ErrorIs(t, err, tc.want)
			assert.NotEqual(t, domain.ErrPersistenceFailure.Error(), domain.Kind(err))
		})
	}
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))
}

func paginationOf(token string, size int) pagination.Pagination {
	return pagination.Pagination{PageToken: token, PageSize: size}
}

func TestCommitRequiresTenant(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Commit(context.Background(), cashSale("k", domain.CommitLine{ProductID: "1", Quantity: 1}))
	require.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestTenantIsolation(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Pan", "1.00", "0", 5, 0)

	result, err := f.svc.Commit(f.ctx, cashSale("k-shared", line(p, 1)))
	require.NoError(t, err)

	other := orgcontext.WithOrgID(context.Background(), f.node.Generate().Int64())
	_, err = f.svc.Get(other, result.Sale.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Commit(other, cashSale("k-shared", line(p, 1)))
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	list, err := f.svc.List(other, domain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Sales)
}

func TestGetAndGetByIdempotencyKey(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Pan", "1.00", "16", 5, 0)

	result, err := f.svc.Commit(f.ctx, cashSale("k-get", line(p, 2)))
	require.NoError(t, err)

	got, err := f.svc.Get(f.ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Sale.GrandTotal, got.GrandTotal)
	assert.Len(t, got.Lines, 1)

	byKey, err := f.svc.GetByIdempotencyKey(f.ctx, "k-get")
	require.NoError(t, err)
	assert.Equal(t, result.Sale.ID, byKey.ID)

	_, err = f.svc.GetByIdempotencyKey(f.ctx, "k-unknown")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(f.ctx, "nope")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Pan", "1.00", "0", 100, 0)

	var ids []string
	for i := 0; i < 5; i++ {
		result, err := f.svc.Commit(f.ctx, cashSale(fmt.Sprintf("k-list-%d", i), line(p, 1)))
		require.NoError(t, err)
		ids = append(ids, result.Sale.ID)
		f.clock.Advance(time.Minute)
	}

	page1, err := f.svc.List(f.ctx, domain.ListRequest{Pagination: paginationOf("", 2)})
	require.NoError(t, err)
	require.Len(t, page1.Sales, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, ids[4], page1.Sales[0].ID)
	assert.Equal(t, ids[3], page1.Sales[1].ID)
	assert.Len(t, page1.Sales[0].Lines, 1)

	page2, err := f.svc.List(f.ctx, domain.ListRequest{Pagination: paginationOf(page1.NextPageToken, 2)})
	require.NoError(t, err)
	require.Len(t, page2.Sales, 2)
	assert.Equal(t, ids[2], page2.Sales[0].ID)

	page3, err := f.svc.List(f.ctx, domain.ListRequest{Pagination: paginationOf(page2.NextPageToken, 2)})
	require.NoError(t, err)
	require.Len(t, page3.Sales, 1)
	assert.False(t, page3.HasMore)

	_, err = f.svc.List(f.ctx, domain.ListRequest{Pagination: paginationOf("garbage", 2)})
	require.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Pan", "1.00", "0", 100, 0)

	_, err := f.svc.Commit(f.ctx, cashSale("k-cash", line(p, 1)))
	require.NoError(t, err)
	card := cashSale("k-card", line(p, 1))
	card.PaymentMethod = "card"
	_, err = f.svc.Commit(f.ctx, card)
	require.NoError(t, err)

	list, err := f.svc.List(f.ctx, domain.ListRequest{PaymentMethod: "CARD"})
	require.NoError(t, err)
	require.Len(t, list.Sales, 1)
	assert.Equal(t, "k-card", list.Sales[0].IdempotencyKey)

	_, err = f.svc.List(f.ctx, domain.ListRequest{Status: "pending"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	from := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = f.svc.List(f.ctx, domain.ListRequest{CreatedFrom: &from, CreatedTo: &to})
	require.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

// lateCommitRepo lets another commit with the same key land right after the
// pre-transaction key lookup, as a retry racing the original request would.
type lateCommitRepo struct {
	domain.Repository
	once   sync.Once
	commit func()
}

func (r *lateCommitRepo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*domain.Sale, error) {
	sale, err := r.Repository.FindByIdempotencyKey(ctx, db, orgID, key)
	r.once.Do(r.commit)
	return sale, err
}

func TestCommitReplaysKeyCommittedWhileWaitingForLocks(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Harina 1kg", "2.50", "0", 3, 0)
	req := cashSale("same-key", line(p, 3))

	original := *f.svc
	var first *domain.CommitResult
	var firstErr error
	f.svc.repo = &lateCommitRepo{
		Repository: original.repo,
		commit: func() {
			first, firstErr = original.Commit(f.ctx, req)
		},
	}

	second, err := f.svc.Commit(f.ctx, req)
	require.NoError(t, firstErr)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Sale.ID, second.Sale.ID)
	assert.Equal(t, int64(0), f.stockOf(t, p.ID))
	assert.Equal(t, int64(1), f.count(t, &domain.Sale{}))
}
