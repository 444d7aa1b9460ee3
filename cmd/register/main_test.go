package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/config"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/smallbiznis/pos/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	commits []saledomain.CommitRequest
}

func (f *fakeBackend) Commit(_ context.Context, req saledomain.CommitRequest) (*saledomain.CommitResult, error) {
	f.commits = append(f.commits, req)
	return &saledomain.CommitResult{Sale: saledomain.Response{ID: "1"}}, nil
}

func (f *fakeBackend) FindByIdempotencyKey(context.Context, string) (*saledomain.Response, error) {
	return nil, nil
}

func (f *fakeBackend) Snapshot(context.Context) (*catalogdomain.Snapshot, error) {
	return &catalogdomain.Snapshot{
		OrganizationID: "42",
		Products: []productdomain.Response{
			{ID: "100", Name: "Coffee", UnitPrice: decimal.RequireFromString("10.00"), TaxRate: decimal.NewFromInt(16), Stock: 10, Active: true},
		},
		Clients: []clientdomain.Response{{ID: "7", Name: "Ana"}},
	}, nil
}

func (f *fakeBackend) CreateClient(context.Context, clientdomain.CreateRequest) (*clientdomain.Response, error) {
	return nil, saledomain.ErrClientNotFound
}

func cashOnlyConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.yml")
	require.NoError(t, os.WriteFile(path, []byte("sales:\n  paymentMethods: [cash]\n"), 0o600))
	return config.Config{Sales: config.SalesConfig{BaseCurrency: "USD", PolicyPath: path}}
}

func coffeeOrder(method string) order {
	o := order{ClientID: "7", Lines: []orderLine{{ProductID: "100", Quantity: 2}}}
	o.Payment.Method = method
	return o
}

func TestRingRefusesMethodOutsidePolicyFile(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, err := newController(cashOnlyConfig(t), backend, backend, zap.NewNop())
	require.NoError(t, err)

	_, err = ring(context.Background(), ctrl, coffeeOrder("card"), 1)
	assert.ErrorIs(t, err, wizard.ErrInvalidMethod)
	assert.Empty(t, backend.commits)
}

func TestRingCommitsAllowedMethod(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, err := newController(cashOnlyConfig(t), backend, backend, zap.NewNop())
	require.NoError(t, err)

	result, err := ring(context.Background(), ctrl, coffeeOrder("cash"), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", result.Sale.ID)
	require.Len(t, backend.commits, 1)
	assert.Equal(t, "cash", backend.commits[0].PaymentMethod)
}
