package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrganization    = errors.New("invalid_organization")
	ErrInvalidRequest         = errors.New("invalid_request")
	ErrInvalidIdempotencyKey  = errors.New("invalid_idempotency_key")
	ErrInvalidPaymentMethod   = errors.New("invalid_payment_method")
	ErrInvalidCurrency        = errors.New("invalid_currency")
	ErrInvalidExchangeRate    = errors.New("invalid_exchange_rate")
	ErrInvalidDiscount        = errors.New("invalid_discount")
	ErrInvalidShipping        = errors.New("invalid_shipping")
	ErrInvalidNotes           = errors.New("invalid_notes")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidProductID       = errors.New("invalid_product_id")
	ErrInvalidClientID        = errors.New("invalid_client_id")
	ErrTooManyLines           = errors.New("too_many_lines")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidTimeRange       = errors.New("invalid_time_range")
	ErrEmptyCart              = errors.New("empty_cart")
	ErrProductNotFound        = errors.New("product_not_found")
	ErrClientNotFound         = errors.New("client_not_found")
	ErrInsufficientStock      = errors.New("insufficient_stock")
	ErrPersistenceFailure     = errors.New("persistence_failure")
	ErrDuplicateSubmission    = errors.New("duplicate_submission")
	ErrIdempotencyKeyConflict = errors.New("idempotency_key_conflict")
	ErrCommitInProgress       = errors.New("commit_in_progress")
	ErrNotFound               = errors.New("not_found")
)

// StockError names the product that could not cover the requested quantity.
type StockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// ProductError names the product that is missing or inactive.
type ProductError struct {
	ProductID string
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %s not found or inactive", e.ProductID)
}

func (e *ProductError) Unwrap() error { return ErrProductNotFound }

// IsValidationError reports whether err is a caller input problem.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidOrganization),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidIdempotencyKey),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrInvalidExchangeRate),
		errors.Is(err, ErrInvalidDiscount),
		errors.Is(err, ErrInvalidShipping),
		errors.Is(err, ErrInvalidNotes),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidProductID),
		errors.Is(err, ErrInvalidClientID),
		errors.Is(err, ErrTooManyLines),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidPageToken),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

// Kind collapses err into the stable error kind reported to callers and
// used as a metrics label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return "validation_error"
	case errors.Is(err, ErrEmptyCart):
		return ErrEmptyCart.Error()
	case errors.Is(err, ErrProductNotFound):
		return ErrProductNotFound.Error()
	case errors.Is(err, ErrClientNotFound):
		return ErrClientNotFound.Error()
	case errors.Is(err, ErrInsufficientStock):
		return ErrInsufficientStock.Error()
	case errors.Is(err, ErrDuplicateSubmission):
		return ErrDuplicateSubmission.Error()
	case errors.Is(err, ErrIdempotencyKeyConflict):
		return ErrIdempotencyKeyConflict.Error()
	case errors.Is(err, ErrCommitInProgress):
		return ErrCommitInProgress.Error()
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	default:
		return ErrPersistenceFailure.Error()
	}
}
