package wizard

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pos/internal/cart"
	"github.com/smallbiznis/pos/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coffee(stock int64) cart.Product {
	return cart.Product{
		ID:        "100",
		Name:      "Coffee",
		UnitPrice: decimal.RequireFromString("10.00"),
		TaxRate:   decimal.NewFromInt(16),
		Stock:     stock,
	}
}

func draftAtProducts(t *testing.T) Draft {
	t.Helper()
	d, err := NewDraft("USD", "key-1").SelectClient(Client{ID: "7", Name: "Ana"})
	require.NoError(t, err)
	d, err = d.Next()
	require.NoError(t, err)
	return d
}

func draftAtPayment(t *testing.T, qty int) Draft {
	t.Helper()
	d := draftAtProducts(t)
	for i := 0; i < qty; i++ {
		var err error
		d, _, err = d.AddProduct(coffee(10))
		require.NoError(t, err)
	}
	d, err := d.Next()
	require.NoError(t, err)
	return d
}

func TestNewDraftDefaults(t *testing.T) {
	d := NewDraft("usd", "key-1")

	assert.Equal(t, StageSelectingClient, d.Stage)
	assert.Equal(t, "USD", d.BaseCurrency)
	assert.Equal(t, "USD", d.Payment.Currency)
	assert.Equal(t, "cash", d.Payment.Method)
	assert.Equal(t, "key-1", d.IdempotencyKey)
	assert.Nil(t, d.Client)
}

func TestNextRequiresClient(t *testing.T) {
	d := NewDraft("USD", "key-1")

	next, err := d.Next()
	assert.ErrorIs(t, err, ErrClientRequired)
	assert.Equal(t, d, next)
}

func TestNextRequiresLines(t *testing.T) {
	d := draftAtProducts(t)

	_, err := d.Next()
	assert.ErrorIs(t, err, ErrEmptyCart)

	d, _, err = d.AddProduct(coffee(10))
	require.NoError(t, err)
	d, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, StageConfiguringPayment, d.Stage)
}

func TestNextFromPaymentIsUnconditional(t *testing.T) {
	d := draftAtPayment(t, 1)

	d, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, StageConfirming, d.Stage)

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrConfirmRequired)
}

func TestBackKeepsEnteredData(t *testing.T) {
	d := draftAtPayment(t, 3)
	rate := decimal.RequireFromString("36.5")
	d, err := d.ConfigurePayment(Payment{Method: "card", Currency: "VES", ExchangeRate: &rate})
	require.NoError(t, err)

	for _, want := range []Stage{StageSelectingProducts, StageSelectingClient, StageSelectingClient} {
		d, err = d.Back()
		require.NoError(t, err)
		assert.Equal(t, want, d.Stage)
	}

	require.NotNil(t, d.Client)
	assert.Equal(t, "7", d.Client.ID)
	line, ok := d.Cart.Line("100")
	require.True(t, ok)
	assert.Equal(t, int64(3), line.Quantity)
	assert.Equal(t, "VES", d.Payment.Currency)

	d, err = d.Next()
	require.NoError(t, err)
	d, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, StageConfiguringPayment, d.Stage)
}

func TestMutationsAreStageBound(t *testing.T) {
	d := NewDraft("USD", "key-1")

	_, _, err := d.AddProduct(coffee(10))
	assert.ErrorIs(t, err, ErrWrongStage)
	_, err = d.ConfigurePayment(Payment{Method: "cash"})
	assert.ErrorIs(t, err, ErrWrongStage)

	d = draftAtProducts(t)
	_, err = d.SelectClient(Client{ID: "8"})
	assert.ErrorIs(t, err, ErrWrongStage)
}

func TestSetQuantityFailureKeepsDraft(t *testing.T) {
	d := draftAtProducts(t)
	d, _, err := d.AddProduct(coffee(5))
	require.NoError(t, err)

	next, err := d.SetQuantity(coffee(5), 6)
	assert.ErrorIs(t, err, cart.ErrInsufficientStock)
	assert.Equal(t, d, next)

	next, err = d.SetQuantity(coffee(5), 0)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	assert.Equal(t, d, next)

	next, err = d.SetQuantity(coffee(5), 5)
	require.NoError(t, err)
	line, _ := next.Cart.Line("100")
	assert.Equal(t, int64(5), line.Quantity)

	next, err = next.RemoveLine("100")
	require.NoError(t, err)
	assert.True(t, next.Cart.IsEmpty())
}

func TestConfigurePaymentValidation(t *testing.T) {
	d := draftAtPayment(t, 1)
	rate := decimal.RequireFromString("36.5")
	zero := decimal.Zero

	tests := []struct {
		name string
		in   Payment
		want error
	}{
		{"missing method", Payment{Currency: "USD"}, ErrInvalidMethod},
		{"bad currency", Payment{Method: "cash", Currency: "dollars"}, ErrInvalidCurrency},
		{"foreign without rate", Payment{Method: "cash", Currency: "VES"}, ErrInvalidRate},
		{"foreign zero rate", Payment{Method: "cash", Currency: "VES", ExchangeRate: &zero}, ErrInvalidRate},
		{"negative discount", Payment{Method: "cash", Discount: decimal.NewFromInt(-1)}, ErrInvalidDiscount},
		{"negative shipping", Payment{Method: "cash", Shipping: decimal.NewFromInt(-1)}, ErrInvalidShipping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := d.ConfigurePayment(tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, d, next)
		})
	}

	next, err := d.ConfigurePayment(Payment{Method: " Card ", Currency: "usd", ExchangeRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, "card", next.Payment.Method)
	assert.Equal(t, "USD", next.Payment.Currency)
	assert.Nil(t, next.Payment.ExchangeRate)
}

func TestTotalsDisplayConversion(t *testing.T) {
	d := draftAtPayment(t, 3)
	rate := decimal.RequireFromString("36.5")
	d, err := d.ConfigurePayment(Payment{Method: "cash", Currency: "VES", ExchangeRate: &rate})
	require.NoError(t, err)

	totals, err := d.Totals()
	require.NoError(t, err)
	assert.Equal(t, "30.00", pricing.FormatMoney(totals.Subtotal))
	assert.Equal(t, "4.80", pricing.FormatMoney(totals.TaxTotal))
	assert.Equal(t, "34.80", pricing.FormatMoney(totals.GrandTotal))
	require.NotNil(t, totals.ConvertedTotal)
	assert.Equal(t, "1270.20", pricing.FormatMoney(*totals.ConvertedTotal))
}

func TestTotalsClampDiscount(t *testing.T) {
	d := draftAtPayment(t, 3)
	d, err := d.ConfigurePayment(Payment{Method: "cash", Discount: decimal.RequireFromString("50.00")})
	require.NoError(t, err)

	totals, err := d.Totals()
	require.NoError(t, err)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.True(t, totals.HasWarning(pricing.WarningDiscountExceedsTotal))
}

func TestTotalsNeedClientAndLines(t *testing.T) {
	_, err := NewDraft("USD", "key-1").Totals()
	assert.ErrorIs(t, err, ErrClientRequired)

	_, err = draftAtProducts(t).Totals()
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCommitRequest(t *testing.T) {
	d := draftAtPayment(t, 2)

	_, err := d.CommitRequest()
	assert.ErrorIs(t, err, ErrWrongStage)

	d, err = d.Next()
	require.NoError(t, err)
	req, err := d.CommitRequest()
	require.NoError(t, err)

	require.NotNil(t, req.ClientID)
	assert.Equal(t, "7", *req.ClientID)
	assert.Equal(t, "key-1", req.IdempotencyKey)
	assert.Equal(t, "cash", req.PaymentMethod)
	assert.Equal(t, "USD", req.Currency)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "100", req.Lines[0].ProductID)
	assert.Equal(t, int64(2), req.Lines[0].Quantity)

	d.IdempotencyKey = ""
	_, err = d.CommitRequest()
	assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}
