// Package saleclient talks to the sale HTTP API on behalf of a register.
package saleclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	headerOrg                = "X-Org-ID"
	headerActor              = "X-Actor-ID"
	headerIdempotencyKey     = "Idempotency-Key"
	headerIdempotentReplayed = "Idempotent-Replayed"

	defaultTimeout = 15 * time.Second
)

var (
	// ErrOutcomeUnknown marks a commit whose result never reached us. The sale
	// may or may not exist; look it up by idempotency key before retrying.
	ErrOutcomeUnknown = errors.New("outcome_unknown")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInvalidConfig  = errors.New("invalid_saleclient_config")
)

type Config struct {
	BaseURL string
	OrgID   string
	ActorID string
	Timeout time.Duration
}

type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" || strings.TrimSpace(cfg.OrgID) == "" {
		return nil, ErrInvalidConfig
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader(headerOrg, strings.TrimSpace(cfg.OrgID))
	if actor := strings.TrimSpace(cfg.ActorID); actor != "" {
		httpClient.SetHeader(headerActor, actor)
	}

	return &Client{http: httpClient, log: log.Named("saleclient")}, nil
}

func (c *Client) Close() error {
	return c.http.Close()
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type commitEnvelope struct {
	Data     saledomain.Response          `json:"data"`
	Warnings []string                     `json:"warnings"`
	LowStock []saledomain.LowStockProduct `json:"lowStock"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Errors  []struct {
			Field   string `json:"field"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// Commit posts a sale. A 200 answer is a replay of an earlier commit with the
// same key. Transport failures and 5xx answers come back as
// ErrPersistenceFailure joined with ErrOutcomeUnknown.
func (c *Client) Commit(ctx context.Context, req saledomain.CommitRequest) (*saledomain.CommitResult, error) {
	var (
		out     commitEnvelope
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerIdempotencyKey, req.IdempotencyKey).
		SetBody(req).
		SetResult(&out).
		SetError(&failure).
		Post("/sales")
	if err != nil {
		c.log.Warn("sale commit transport failure", zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
		return nil, fmt.Errorf("%w: %w: %v", saledomain.ErrPersistenceFailure, ErrOutcomeUnknown, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusCreated || status == http.StatusOK:
		return &saledomain.CommitResult{
			Sale:     out.Data,
			Replayed: status == http.StatusOK || resp.Header().Get(headerIdempotentReplayed) == "true",
			Warnings: out.Warnings,
			LowStock: out.LowStock,
		}, nil
	case status >= http.StatusInternalServerError:
		c.log.Warn("sale commit server failure", zap.String("idempotency_key", req.IdempotencyKey), zap.Int("status", status))
		return nil, fmt.Errorf("%w: %w: status %d", saledomain.ErrPersistenceFailure, ErrOutcomeUnknown, status)
	default:
		return nil, toError(status, failure)
	}
}

// FindByIdempotencyKey returns nil without error when no sale was stored
// under key.
func (c *Client) FindByIdempotencyKey(ctx context.Context, key string) (*saledomain.Response, error) {
	var (
		out     envelope[saledomain.Response]
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("idempotency_key", key).
		SetResult(&out).
		SetError(&failure).
		Get("/api/sales")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", saledomain.ErrPersistenceFailure, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK:
		return &out.Data, nil
	case status == http.StatusNotFound:
		return nil, nil
	case status >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", saledomain.ErrPersistenceFailure, status)
	default:
		return nil, toError(status, failure)
	}
}

func (c *Client) Snapshot(ctx context.Context) (*catalogdomain.Snapshot, error) {
	var (
		out     envelope[catalogdomain.Snapshot]
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&failure).
		Get("/api/catalog")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", saledomain.ErrPersistenceFailure, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, toError(resp.StatusCode(), failure)
	}
	return &out.Data, nil
}

func (c *Client) CreateClient(ctx context.Context, req clientdomain.CreateRequest) (*clientdomain.Response, error) {
	var (
		out     envelope[clientdomain.Response]
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&failure).
		Post("/api/clients")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", saledomain.ErrPersistenceFailure, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, toError(resp.StatusCode(), failure)
	}
	return &out.Data, nil
}

var kinds = map[string]error{
	saledomain.ErrEmptyCart.Error():              saledomain.ErrEmptyCart,
	saledomain.ErrProductNotFound.Error():        saledomain.ErrProductNotFound,
	saledomain.ErrClientNotFound.Error():         saledomain.ErrClientNotFound,
	saledomain.ErrInsufficientStock.Error():      saledomain.ErrInsufficientStock,
	saledomain.ErrIdempotencyKeyConflict.Error(): saledomain.ErrIdempotencyKeyConflict,
	saledomain.ErrCommitInProgress.Error():       saledomain.ErrCommitInProgress,
	saledomain.ErrPersistenceFailure.Error():     saledomain.ErrPersistenceFailure,
	saledomain.ErrNotFound.Error():               saledomain.ErrNotFound,
	clientdomain.ErrDuplicateTaxID.Error():       clientdomain.ErrDuplicateTaxID,
	"rate_limited":                               ErrRateLimited,
}

var validationCodes = map[string]error{
	saledomain.ErrInvalidIdempotencyKey.Error(): saledomain.ErrInvalidIdempotencyKey,
	saledomain.ErrInvalidPaymentMethod.Error():  saledomain.ErrInvalidPaymentMethod,
	saledomain.ErrInvalidCurrency.Error():       saledomain.ErrInvalidCurrency,
	saledomain.ErrInvalidExchangeRate.Error():   saledomain.ErrInvalidExchangeRate,
	saledomain.ErrInvalidDiscount.Error():       saledomain.ErrInvalidDiscount,
	saledomain.ErrInvalidShipping.Error():       saledomain.ErrInvalidShipping,
	saledomain.ErrInvalidNotes.Error():          saledomain.ErrInvalidNotes,
	saledomain.ErrInvalidQuantity.Error():       saledomain.ErrInvalidQuantity,
	saledomain.ErrInvalidProductID.Error():      saledomain.ErrInvalidProductID,
	saledomain.ErrInvalidClientID.Error():       saledomain.ErrInvalidClientID,
	saledomain.ErrTooManyLines.Error():          saledomain.ErrTooManyLines,
	saledomain.ErrInvalidOrganization.Error():   saledomain.ErrInvalidOrganization,
	clientdomain.ErrInvalidName.Error():         clientdomain.ErrInvalidName,
}

// toError turns an API error body back into the sentinel the server
// started from, keeping the product detail of stock and product errors.
func toError(status int, failure apiError) error {
	kind := failure.Error.Type
	var detail string
	if len(failure.Error.Errors) > 0 {
		detail = failure.Error.Errors[0].Code
	}

	switch kind {
	case "validation_error":
		if err, ok := validationCodes[detail]; ok {
			return err
		}
		return fmt.Errorf("%w: %s", saledomain.ErrInvalidRequest, detail)
	case saledomain.ErrInsufficientStock.Error():
		if detail != "" {
			return &saledomain.StockError{ProductID: detail}
		}
	case saledomain.ErrProductNotFound.Error():
		if detail != "" {
			return &saledomain.ProductError{ProductID: detail}
		}
	}

	if err, ok := kinds[kind]; ok {
		return err
	}
	return fmt.Errorf("unexpected status %d: %s", status, failure.Error.Message)
}
