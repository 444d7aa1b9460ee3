// Package wizard drives a register through a sale: pick a client, ring up
// products, configure payment, confirm. Draft is a plain serializable value
// and every transition on it is a pure function returning a new Draft.
package wizard

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pos/internal/cart"
	"github.com/smallbiznis/pos/internal/pricing"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
)

type Stage string

const (
	StageSelectingClient    Stage = "selecting_client"
	StageSelectingProducts  Stage = "selecting_products"
	StageConfiguringPayment Stage = "configuring_payment"
	StageConfirming         Stage = "confirming"
	StageCommitted          Stage = "committed"
)

var stageOrder = []Stage{
	StageSelectingClient,
	StageSelectingProducts,
	StageConfiguringPayment,
	StageConfirming,
	StageCommitted,
}

var (
	ErrClientRequired        = errors.New("client_required")
	ErrWrongStage            = errors.New("wrong_stage")
	ErrConfirmRequired       = errors.New("confirm_required")
	ErrEmptyCart             = saledomain.ErrEmptyCart
	ErrInvalidCurrency       = saledomain.ErrInvalidCurrency
	ErrInvalidRate           = saledomain.ErrInvalidExchangeRate
	ErrInvalidDiscount       = saledomain.ErrInvalidDiscount
	ErrInvalidShipping       = saledomain.ErrInvalidShipping
	ErrInvalidMethod         = saledomain.ErrInvalidPaymentMethod
	ErrMissingIdempotencyKey = saledomain.ErrInvalidIdempotencyKey
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Client is the part of a client record the draft keeps.
type Client struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payment holds the terms chosen on the payment stage. ExchangeRate is set
// only when Currency differs from the base currency.
type Payment struct {
	Method       string           `json:"method"`
	Currency     string           `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	Discount     decimal.Decimal  `json:"discount"`
	Shipping     decimal.Decimal  `json:"shipping"`
	Notes        string           `json:"notes,omitempty"`
}

type Draft struct {
	Stage          Stage     `json:"stage"`
	Client         *Client   `json:"client,omitempty"`
	Cart           cart.Cart `json:"cart"`
	Payment        Payment   `json:"payment"`
	BaseCurrency   string    `json:"base_currency"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// NewDraft starts a sale at the client stage. Payment defaults to cash in
// the base currency.
func NewDraft(baseCurrency, idempotencyKey string) Draft {
	base := pricing.NormalizeCurrency(baseCurrency)
	return Draft{
		Stage: StageSelectingClient,
		Payment: Payment{
			Method:   "cash",
			Currency: base,
			Discount: decimal.Zero,
			Shipping: decimal.Zero,
		},
		BaseCurrency:   base,
		IdempotencyKey: idempotencyKey,
	}
}

// Next moves one stage forward when the current stage is complete.
// Confirming only advances through a commit.
func (d Draft) Next() (Draft, error) {
	switch d.Stage {
	case StageSelectingClient:
		if d.Client == nil {
			return d, ErrClientRequired
		}
	case StageSelectingProducts:
		if d.Cart.IsEmpty() {
			return d, ErrEmptyCart
		}
	case StageConfiguringPayment:
	case StageConfirming:
		return d, ErrConfirmRequired
	default:
		return d, ErrWrongStage
	}
	d.Stage = stageOrder[d.stageIndex()+1]
	return d, nil
}

// Back moves one stage backward and keeps everything entered. It is a no-op
// on the first stage.
func (d Draft) Back() (Draft, error) {
	idx := d.stageIndex()
	switch {
	case d.Stage == StageCommitted || idx < 0:
		return d, ErrWrongStage
	case idx == 0:
		return d, nil
	}
	d.Stage = stageOrder[idx-1]
	return d, nil
}

func (d Draft) SelectClient(c Client) (Draft, error) {
	if d.Stage != StageSelectingClient {
		return d, ErrWrongStage
	}
	if strings.TrimSpace(c.ID) == "" {
		return d, ErrClientRequired
	}
	d.Client = &c
	return d, nil
}

func (d Draft) ClearClient() (Draft, error) {
	if d.Stage != StageSelectingClient {
		return d, ErrWrongStage
	}
	d.Client = nil
	return d, nil
}

func (d Draft) AddProduct(p cart.Product) (Draft, []cart.Warning, error) {
	if d.Stage != StageSelectingProducts {
		return d, nil, ErrWrongStage
	}
	next, warnings := d.Cart.AddProduct(p)
	d.Cart = next
	return d, warnings, nil
}

func (d Draft) SetQuantity(p cart.Product, qty int64) (Draft, error) {
	if d.Stage != StageSelectingProducts {
		return d, ErrWrongStage
	}
	next, err := d.Cart.SetQuantity(p, qty)
	if err != nil {
		return d, err
	}
	d.Cart = next
	return d, nil
}

func (d Draft) RemoveLine(productID string) (Draft, error) {
	if d.Stage != StageSelectingProducts {
		return d, ErrWrongStage
	}
	d.Cart = d.Cart.RemoveLine(productID)
	return d, nil
}

// ConfigurePayment replaces the payment terms. Invalid terms are rejected
// here so the forward transition out of the payment stage never has to.
func (d Draft) ConfigurePayment(p Payment) (Draft, error) {
	if d.Stage != StageConfiguringPayment {
		return d, ErrWrongStage
	}

	p.Method = strings.ToLower(strings.TrimSpace(p.Method))
	if p.Method == "" {
		return d, ErrInvalidMethod
	}
	p.Currency = pricing.NormalizeCurrency(p.Currency)
	if p.Currency == "" {
		p.Currency = d.BaseCurrency
	}
	if !currencyPattern.MatchString(p.Currency) {
		return d, ErrInvalidCurrency
	}
	if p.Currency == d.BaseCurrency {
		p.ExchangeRate = nil
	} else if p.ExchangeRate == nil || !p.ExchangeRate.IsPositive() {
		return d, ErrInvalidRate
	}
	if p.Discount.IsNegative() {
		return d, ErrInvalidDiscount
	}
	if p.Shipping.IsNegative() {
		return d, ErrInvalidShipping
	}
	p.Notes = strings.TrimSpace(p.Notes)

	d.Payment = p
	return d, nil
}

// Totals prices the draft for display. It needs a client and at least one
// line.
func (d Draft) Totals() (pricing.Totals, error) {
	if d.Client == nil {
		return pricing.Totals{}, ErrClientRequired
	}
	if d.Cart.IsEmpty() {
		return pricing.Totals{}, ErrEmptyCart
	}
	return pricing.ComputeTotals(pricing.Input{
		Lines:        d.Cart.PricingLines(),
		Discount:     d.Payment.Discount,
		Shipping:     d.Payment.Shipping,
		Currency:     d.Payment.Currency,
		BaseCurrency: d.BaseCurrency,
		ExchangeRate: d.Payment.ExchangeRate,
	})
}

// CommitRequest builds the request sent on confirmation. Prices stay out of
// it: the server prices lines from its own catalog.
func (d Draft) CommitRequest() (saledomain.CommitRequest, error) {
	if d.Stage != StageConfirming {
		return saledomain.CommitRequest{}, ErrWrongStage
	}
	if d.Client == nil {
		return saledomain.CommitRequest{}, ErrClientRequired
	}
	if d.Cart.IsEmpty() {
		return saledomain.CommitRequest{}, ErrEmptyCart
	}
	if strings.TrimSpace(d.IdempotencyKey) == "" {
		return saledomain.CommitRequest{}, ErrMissingIdempotencyKey
	}

	lines := make([]saledomain.CommitLine, 0, len(d.Cart.Lines))
	for _, line := range d.Cart.Lines {
		lines = append(lines, saledomain.CommitLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	clientID := d.Client.ID

	return saledomain.CommitRequest{
		ClientID:       &clientID,
		Lines:          lines,
		PaymentMethod:  d.Payment.Method,
		Currency:       d.Payment.Currency,
		ExchangeRate:   d.Payment.ExchangeRate,
		Discount:       d.Payment.Discount,
		Shipping:       d.Payment.Shipping,
		Notes:          d.Payment.Notes,
		IdempotencyKey: d.IdempotencyKey,
	}, nil
}

func (d Draft) stageIndex() int {
	for i, stage := range stageOrder {
		if stage == d.Stage {
			return i
		}
	}
	return -1
}
