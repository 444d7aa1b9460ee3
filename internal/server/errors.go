package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrOrgRequired        = errors.New("invalid_organization")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var stockErr *saledomain.StockError
	if errors.As(err, &stockErr) {
		return http.StatusConflict, errorPayload{
			Type:    saledomain.ErrInsufficientStock.Error(),
			Message: "insufficient stock",
			Errors: []ValidationError{
				{Field: "product_id", Code: stockErr.ProductID, Message: stockErr.Error()},
			},
		}
	}

	var productErr *saledomain.ProductError
	if errors.As(err, &productErr) {
		return http.StatusNotFound, errorPayload{
			Type:    saledomain.ErrProductNotFound.Error(),
			Message: "product not found",
			Errors: []ValidationError{
				{Field: "product_id", Code: productErr.ProductID, Message: productErr.Error()},
			},
		}
	}

	switch {
	case errors.Is(err, saledomain.ErrEmptyCart):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    saledomain.ErrEmptyCart.Error(),
			Message: "cart is empty",
		}
	case errors.Is(err, saledomain.ErrClientNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    saledomain.ErrClientNotFound.Error(),
			Message: "client not found",
		}
	case errors.Is(err, saledomain.ErrInsufficientStock),
		errors.Is(err, productdomain.ErrInsufficientStock):
		return http.StatusConflict, errorPayload{
			Type:    saledomain.ErrInsufficientStock.Error(),
			Message: "insufficient stock",
		}
	case errors.Is(err, saledomain.ErrIdempotencyKeyConflict):
		return http.StatusConflict, errorPayload{
			Type:    saledomain.ErrIdempotencyKeyConflict.Error(),
			Message: "idempotency key was used for a different sale",
		}
	case errors.Is(err, saledomain.ErrCommitInProgress):
		return http.StatusConflict, errorPayload{
			Type:    saledomain.ErrCommitInProgress.Error(),
			Message: "a commit with this idempotency key is in progress",
		}
	case errors.Is(err, productdomain.ErrDuplicateCode),
		errors.Is(err, clientdomain.ErrDuplicateTaxID),
		errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    conflictType(err),
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, saledomain.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    saledomain.ErrPersistenceFailure.Error(),
			Message: "sale could not be stored",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrOrgRequired):
		return true
	case saledomain.IsValidationError(err),
		isProductValidationError(err),
		isClientValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, catalogdomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, saledomain.ErrNotFound),
		errors.Is(err, saledomain.ErrProductNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictType(err error) string {
	switch {
	case errors.Is(err, productdomain.ErrDuplicateCode):
		return productdomain.ErrDuplicateCode.Error()
	case errors.Is(err, clientdomain.ErrDuplicateTaxID):
		return clientdomain.ErrDuplicateTaxID.Error()
	default:
		return "conflict"
	}
}

// validationSentinels lists the codes a wrapped validation error may carry.
var validationSentinels = []error{
	ErrInvalidRequest,
	ErrOrgRequired,
	saledomain.ErrInvalidIdempotencyKey,
	saledomain.ErrInvalidPaymentMethod,
	saledomain.ErrInvalidCurrency,
	saledomain.ErrInvalidExchangeRate,
	saledomain.ErrInvalidDiscount,
	saledomain.ErrInvalidShipping,
	saledomain.ErrInvalidNotes,
	saledomain.ErrInvalidQuantity,
	saledomain.ErrInvalidProductID,
	saledomain.ErrInvalidClientID,
	saledomain.ErrTooManyLines,
	saledomain.ErrInvalidID,
	saledomain.ErrInvalidPageToken,
	saledomain.ErrInvalidStatus,
	saledomain.ErrInvalidTimeRange,
	saledomain.ErrInvalidRequest,
	saledomain.ErrInvalidOrganization,
}

func validationErrorCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_organization":
		return "a valid " + HeaderOrg + " header is required"
	case "too_many_lines":
		return "too many lines"
	default:
		return "invalid value"
	}
}

func isProductValidationError(err error) bool {
	switch err {
	case productdomain.ErrInvalidOrganization,
		productdomain.ErrInvalidCode,
		productdomain.ErrInvalidName,
		productdomain.ErrInvalidPrice,
		productdomain.ErrInvalidCost,
		productdomain.ErrInvalidTaxRate,
		productdomain.ErrInvalidStock,
		productdomain.ErrInvalidDelta,
		productdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isClientValidationError(err error) bool {
	switch err {
	case clientdomain.ErrInvalidOrganization,
		clientdomain.ErrInvalidName,
		clientdomain.ErrInvalidClassification,
		clientdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch err {
	case auditdomain.ErrInvalidOrganization,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction:
		return true
	default:
		return false
	}
}
