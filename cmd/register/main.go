// Command register rings up one sale against a running pos API. The order
// is read as JSON from stdin and the committed sale is written to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/config"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/smallbiznis/pos/internal/saleclient"
	"github.com/smallbiznis/pos/internal/wizard"
	"go.uber.org/zap"
)

type orderLine struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type order struct {
	ClientID  string                      `json:"clientId"`
	NewClient *clientdomain.CreateRequest `json:"newClient"`
	Lines     []orderLine                 `json:"lines"`
	Payment   struct {
		Method       string           `json:"method"`
		Currency     string           `json:"currency"`
		ExchangeRate *decimal.Decimal `json:"exchangeRate"`
		Discount     decimal.Decimal  `json:"discount"`
		Shipping     decimal.Decimal  `json:"shipping"`
		Notes        string           `json:"notes"`
	} `json:"payment"`
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	if err := run(log); err != nil {
		log.Error("register failed", zap.String("kind", saledomain.Kind(err)), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(log *zap.Logger) error {
	cfg := config.Load()

	client, err := saleclient.New(saleclient.Config{
		BaseURL: getenv("POS_API_URL", "http://localhost:8080"),
		OrgID:   os.Getenv("POS_ORG_ID"),
		ActorID: getenv("POS_ACTOR_ID", "register"),
		Timeout: time.Duration(getenvInt("POS_TIMEOUT_SECONDS", 15)) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("register config: %w", err)
	}
	defer func() { _ = client.Close() }()

	var o order
	if err := json.NewDecoder(os.Stdin).Decode(&o); err != nil {
		return fmt.Errorf("read order: %w", err)
	}

	ctrl, err := newController(cfg, client, client, log)
	if err != nil {
		return err
	}

	result, err := ring(context.Background(), ctrl, o, getenvInt("POS_COMMIT_ATTEMPTS", 3))
	if err != nil {
		return err
	}

	log.Info("sale committed",
		zap.String("sale_id", result.Sale.ID),
		zap.String("grand_total", result.Sale.GrandTotal),
		zap.Bool("replayed", result.Replayed),
	)
	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// newController loads the same sales policy file the API enforces so a
// disallowed payment is refused before anything is sent.
func newController(cfg config.Config, committer wizard.Committer, catalog wizard.CatalogSource, log *zap.Logger) (*wizard.Controller, error) {
	policy, err := config.NewSalesPolicyHolder(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("sales policy: %w", err)
	}
	return wizard.NewController(committer, catalog, wizard.Options{
		BaseCurrency: cfg.Sales.BaseCurrency,
		Policy:       policy,
	}, log), nil
}

func ring(ctx context.Context, ctrl *wizard.Controller, o order, attempts int) (*saledomain.CommitResult, error) {
	if o.NewClient != nil {
		if _, err := ctrl.QuickCreateClient(ctx, *o.NewClient); err != nil {
			return nil, err
		}
	} else if err := ctrl.SelectClient(ctx, o.ClientID); err != nil {
		return nil, err
	}
	if err := ctrl.Next(); err != nil {
		return nil, err
	}

	for _, line := range o.Lines {
		if _, err := ctrl.AddProduct(ctx, line.ProductID); err != nil {
			return nil, err
		}
		if line.Quantity > 1 {
			if err := ctrl.SetQuantity(ctx, line.ProductID, line.Quantity); err != nil {
				return nil, err
			}
		}
	}
	if err := ctrl.Next(); err != nil {
		return nil, err
	}

	if err := ctrl.ConfigurePayment(wizard.Payment{
		Method:       o.Payment.Method,
		Currency:     o.Payment.Currency,
		ExchangeRate: o.Payment.ExchangeRate,
		Discount:     o.Payment.Discount,
		Shipping:     o.Payment.Shipping,
		Notes:        o.Payment.Notes,
	}); err != nil {
		return nil, err
	}
	if err := ctrl.Next(); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := ctrl.Confirm(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, saledomain.ErrPersistenceFailure) && !errors.Is(err, saledomain.ErrCommitInProgress) {
			return nil, err
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return nil, lastErr
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}
