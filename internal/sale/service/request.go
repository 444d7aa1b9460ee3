package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pos/internal/pricing"
	"github.com/smallbiznis/pos/internal/sale/domain"
)

const maxIdempotencyKeyLength = 128

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type commitLine struct {
	productID snowflake.ID
	quantity  int64
}

type commitInput struct {
	key           string
	clientID      *snowflake.ID
	lines         []commitLine
	paymentMethod string
	currency      string
	exchangeRate  *decimal.Decimal
	discount      decimal.Decimal
	shipping      decimal.Decimal
	notes         string
}

func (s *Service) normalize(req domain.CommitRequest) (commitInput, error) {
	policy := s.policy.Get()

	in := commitInput{
		key:           strings.TrimSpace(req.IdempotencyKey),
		paymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		currency:      pricing.NormalizeCurrency(req.Currency),
		discount:      req.Discount,
		shipping:      req.Shipping,
		notes:         strings.TrimSpace(req.Notes),
	}

	if in.key == "" || len(in.key) > maxIdempotencyKeyLength {
		return commitInput{}, domain.ErrInvalidIdempotencyKey
	}
	if len(req.Lines) == 0 {
		return commitInput{}, domain.ErrEmptyCart
	}
	if len(req.Lines) > policy.MaxLines {
		return commitInput{}, domain.ErrTooManyLines
	}

	in.lines = make([]commitLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity < 1 || line.Quantity > policy.MaxLineQuantity {
			return commitInput{}, domain.ErrInvalidQuantity
		}
		id, err := snowflake.ParseString(strings.TrimSpace(line.ProductID))
		if err != nil || id <= 0 {
			return commitInput{}, domain.ErrInvalidProductID
		}
		in.lines = append(in.lines, commitLine{productID: id, quantity: line.Quantity})
	}

	if req.ClientID != nil && strings.TrimSpace(*req.ClientID) != "" {
		id, err := snowflake.ParseString(strings.TrimSpace(*req.ClientID))
		if err != nil || id <= 0 {
			return commitInput{}, domain.ErrInvalidClientID
		}
		in.clientID = &id
	}

	if !policy.AllowsPaymentMethod(in.paymentMethod) {
		return commitInput{}, domain.ErrInvalidPaymentMethod
	}

	if in.currency == "" {
		in.currency = s.baseCurrency
	}
	if !currencyPattern.MatchString(in.currency) {
		return commitInput{}, domain.ErrInvalidCurrency
	}
	if in.currency != s.baseCurrency {
		if req.ExchangeRate == nil || !req.ExchangeRate.IsPositive() {
			return commitInput{}, domain.ErrInvalidExchangeRate
		}
		rate := *req.ExchangeRate
		in.exchangeRate = &rate
	}

	if in.discount.IsNegative() {
		return commitInput{}, domain.ErrInvalidDiscount
	}
	if in.shipping.IsNegative() {
		return commitInput{}, domain.ErrInvalidShipping
	}
	if utf8.RuneCountInString(in.notes) > policy.MaxNotesLength {
		return commitInput{}, domain.ErrInvalidNotes
	}

	return in, nil
}

type hashedLine struct {
	ProductID string `json:"p"`
	Quantity  int64  `json:"q"`
}

type hashedRequest struct {
	ClientID      string       `json:"c"`
	Lines         []hashedLine `json:"l"`
	PaymentMethod string       `json:"pm"`
	Currency      string       `json:"cur"`
	ExchangeRate  string       `json:"fx"`
	Discount      string       `json:"d"`
	Shipping      string       `json:"s"`
	Notes         string       `json:"n"`
}

// requestHash fingerprints the normalized payload so a reused idempotency key
// can be told apart from a retry of the same sale.
func requestHash(in commitInput) (string, error) {
	h := hashedRequest{
		Lines:         make([]hashedLine, 0, len(in.lines)),
		PaymentMethod: in.paymentMethod,
		Currency:      in.currency,
		Discount:      pricing.FormatMoney(in.discount),
		Shipping:      pricing.FormatMoney(in.shipping),
		Notes:         in.notes,
	}
	if in.clientID != nil {
		h.ClientID = in.clientID.String()
	}
	if in.exchangeRate != nil {
		h.ExchangeRate = in.exchangeRate.String()
	}
	for _, line := range in.lines {
		h.Lines = append(h.Lines, hashedLine{ProductID: line.productID.String(), Quantity: line.quantity})
	}

	payload, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
