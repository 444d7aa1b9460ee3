package wizard

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/config"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) Commit(ctx context.Context, req saledomain.CommitRequest) (*saledomain.CommitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saledomain.CommitResult), args.Error(1)
}

func (m *mockCommitter) FindByIdempotencyKey(ctx context.Context, key string) (*saledomain.Response, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saledomain.Response), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Snapshot(ctx context.Context) (*catalogdomain.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogdomain.Snapshot), args.Error(1)
}

func (m *mockCatalog) CreateClient(ctx context.Context, req clientdomain.CreateRequest) (*clientdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientdomain.Response), args.Error(1)
}

func testSnapshot() *catalogdomain.Snapshot {
	return &catalogdomain.Snapshot{
		OrganizationID: "42",
		Products: []productdomain.Response{
			{ID: "100", Name: "Coffee", UnitPrice: decimal.RequireFromString("10.00"), TaxRate: decimal.NewFromInt(16), Stock: 10, Active: true},
			{ID: "200", Name: "Tea", UnitPrice: decimal.RequireFromString("4.50"), TaxRate: decimal.Zero, Stock: 0, Active: true},
		},
		Clients: []clientdomain.Response{{ID: "7", Name: "Ana"}},
	}
}

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
}

func withKey(key string) any {
	return mock.MatchedBy(func(req saledomain.CommitRequest) bool { return req.IdempotencyKey == key })
}

func newTestController(committer *mockCommitter, catalog *mockCatalog) *Controller {
	return NewController(committer, catalog, Options{BaseCurrency: "USD", NewKey: sequentialKeys()}, zap.NewNop())
}

// confirmingController walks a controller to the confirm stage with three
// coffees for client 7.
func confirmingController(t *testing.T, committer *mockCommitter) *Controller {
	t.Helper()
	ctx := context.Background()
	catalog := &mockCatalog{}
	catalog.On("Snapshot", mock.Anything).Return(testSnapshot(), nil)

	c := newTestController(committer, catalog)
	require.NoError(t, c.SelectClient(ctx, "7"))
	require.NoError(t, c.Next())
	for i := 0; i < 3; i++ {
		_, err := c.AddProduct(ctx, "100")
		require.NoError(t, err)
	}
	require.NoError(t, c.Next())
	require.NoError(t, c.Next())
	require.Equal(t, StageConfirming, c.Draft().Stage)
	return c
}

func TestConfirmSuccessResetsDraft(t *testing.T) {
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, withKey("key-1")).
		Return(&saledomain.CommitResult{Sale: saledomain.Response{ID: "9001", GrandTotal: "34.80"}}, nil).Once()

	c := confirmingController(t, committer)
	result, err := c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9001", result.Sale.ID)

	d := c.Draft()
	assert.Equal(t, StageSelectingClient, d.Stage)
	assert.Equal(t, "key-2", d.IdempotencyKey)
	assert.Nil(t, d.Client)
	assert.True(t, d.Cart.IsEmpty())

	done, ok := c.LastCommitted()
	require.True(t, ok)
	assert.Equal(t, StageCommitted, done.Stage)
	assert.Equal(t, "key-1", done.IdempotencyKey)
	committer.AssertExpectations(t)
}

func TestConfirmFailureKeepsDraft(t *testing.T) {
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, withKey("key-1")).
		Return(nil, &saledomain.StockError{ProductID: "100", Requested: 3, Available: 1}).Once()

	c := confirmingController(t, committer)
	before := c.Draft()

	_, err := c.Confirm(context.Background())
	assert.ErrorIs(t, err, saledomain.ErrInsufficientStock)
	assert.Equal(t, before, c.Draft())

	_, ok := c.LastCommitted()
	assert.False(t, ok)
}

func TestConfirmRecoversStoredSaleAfterUnknownOutcome(t *testing.T) {
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, withKey("key-1")).
		Return(nil, fmt.Errorf("%w: timeout", saledomain.ErrPersistenceFailure)).Once()
	committer.On("FindByIdempotencyKey", mock.Anything, "key-1").
		Return(&saledomain.Response{ID: "9001", IdempotencyKey: "key-1"}, nil).Once()

	c := confirmingController(t, committer)

	_, err := c.Confirm(context.Background())
	require.ErrorIs(t, err, saledomain.ErrPersistenceFailure)
	assert.Equal(t, StageConfirming, c.Draft().Stage)
	assert.Equal(t, "key-1", c.Draft().IdempotencyKey)

	result, err := c.Confirm(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, "9001", result.Sale.ID)
	assert.Equal(t, "key-2", c.Draft().IdempotencyKey)

	committer.AssertExpectations(t)
	committer.AssertNumberOfCalls(t, "Commit", 1)
}

func TestConfirmResendsWithSameKeyWhenNothingStored(t *testing.T) {
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, withKey("key-1")).
		Return(nil, fmt.Errorf("%w: timeout", saledomain.ErrPersistenceFailure)).Once()
	committer.On("FindByIdempotencyKey", mock.Anything, "key-1").Return(nil, nil).Once()
	committer.On("Commit", mock.Anything, withKey("key-1")).
		Return(&saledomain.CommitResult{Sale: saledomain.Response{ID: "9002"}}, nil).Once()

	c := confirmingController(t, committer)

	_, err := c.Confirm(context.Background())
	require.Error(t, err)

	result, err := c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9002", result.Sale.ID)
	committer.AssertExpectations(t)
}

func TestConfirmLookupFailureKeepsUnresolved(t *testing.T) {
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, withKey("key-1")).
		Return(nil, saledomain.ErrCommitInProgress).Once()
	committer.On("FindByIdempotencyKey", mock.Anything, "key-1").
		Return(nil, saledomain.ErrPersistenceFailure).Once()
	committer.On("FindByIdempotencyKey", mock.Anything, "key-1").
		Return(&saledomain.Response{ID: "9001"}, nil).Once()

	c := confirmingController(t, committer)

	_, err := c.Confirm(context.Background())
	require.ErrorIs(t, err, saledomain.ErrCommitInProgress)
	_, err = c.Confirm(context.Background())
	require.ErrorIs(t, err, saledomain.ErrPersistenceFailure)

	result, err := c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9001", result.Sale.ID)
	committer.AssertNumberOfCalls(t, "Commit", 1)
}

func TestQuickCreateClientSelectsIt(t *testing.T) {
	ctx := context.Background()
	catalog := &mockCatalog{}
	catalog.On("Snapshot", mock.Anything).Return(testSnapshot(), nil)
	catalog.On("CreateClient", mock.Anything, clientdomain.CreateRequest{Name: "Luis"}).
		Return(&clientdomain.Response{ID: "8", Name: "Luis"}, nil).Once()

	c := newTestController(&mockCommitter{}, catalog)
	created, err := c.QuickCreateClient(ctx, clientdomain.CreateRequest{Name: "Luis"})
	require.NoError(t, err)
	assert.Equal(t, "8", created.ID)
	require.NotNil(t, c.Draft().Client)
	assert.Equal(t, "Luis", c.Draft().Client.Name)
	require.NoError(t, c.Next())

	catalog.AssertExpectations(t)
}

func TestAddProductLookups(t *testing.T) {
	ctx := context.Background()
	catalog := &mockCatalog{}
	catalog.On("Snapshot", mock.Anything).Return(testSnapshot(), nil).Once()

	c := newTestController(&mockCommitter{}, catalog)
	require.NoError(t, c.SelectClient(ctx, "7"))
	require.NoError(t, c.Next())

	_, err := c.AddProduct(ctx, "999")
	assert.ErrorIs(t, err, saledomain.ErrProductNotFound)

	warnings, err := c.AddProduct(ctx, "200")
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.True(t, c.Draft().Cart.IsEmpty())

	err = c.SelectClient(ctx, "nobody")
	assert.ErrorIs(t, err, saledomain.ErrClientNotFound)

	catalog.AssertNumberOfCalls(t, "Snapshot", 1)
}

func TestConfigurePaymentHonoursPolicy(t *testing.T) {
	committer := &mockCommitter{}
	c := confirmingController(t, committer)
	require.NoError(t, c.Back())

	policy := config.DefaultSalesPolicy()
	policy.PaymentMethods = []string{config.PaymentMethodCash}
	c.policy = config.NewStaticSalesPolicyHolder(policy)

	assert.ErrorIs(t, c.ConfigurePayment(Payment{Method: "card"}), ErrInvalidMethod)
	assert.Equal(t, "cash", c.Draft().Payment.Method)
	require.NoError(t, c.ConfigurePayment(Payment{Method: "CASH", Discount: decimal.RequireFromString("1.00")}))
	assert.Equal(t, "1.00", c.Draft().Payment.Discount.StringFixed(2))
}
