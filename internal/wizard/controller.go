package wizard

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/pos/internal/cart"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/config"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"go.uber.org/zap"
)

// Committer finalizes sales. saleclient.Client implements it over HTTP.
type Committer interface {
	Commit(ctx context.Context, req saledomain.CommitRequest) (*saledomain.CommitResult, error)
	// FindByIdempotencyKey returns nil, nil when nothing was stored.
	FindByIdempotencyKey(ctx context.Context, key string) (*saledomain.Response, error)
}

// CatalogSource feeds the wizard its product and client lists.
type CatalogSource interface {
	Snapshot(ctx context.Context) (*catalogdomain.Snapshot, error)
	CreateClient(ctx context.Context, req clientdomain.CreateRequest) (*clientdomain.Response, error)
}

type Options struct {
	BaseCurrency string
	Policy       *config.SalesPolicyHolder
	// NewKey generates idempotency keys. Defaults to ULIDs.
	NewKey func() string
}

// Controller owns one register's draft. It is not safe for concurrent use:
// a register issues one action at a time.
type Controller struct {
	log       *zap.Logger
	committer Committer
	catalog   CatalogSource
	policy    *config.SalesPolicyHolder
	newKey    func() string
	base      string

	draft     Draft
	committed *Draft
	snapshot  *catalogdomain.Snapshot

	// unresolved is set when the last commit attempt may have been stored.
	unresolved bool
}

func NewController(committer Committer, catalog CatalogSource, opts Options, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	newKey := opts.NewKey
	if newKey == nil {
		newKey = func() string { return ulid.Make().String() }
	}
	base := opts.BaseCurrency
	if base == "" {
		base = "USD"
	}

	c := &Controller{
		log:       log.Named("wizard"),
		committer: committer,
		catalog:   catalog,
		policy:    opts.Policy,
		newKey:    newKey,
		base:      base,
	}
	c.draft = NewDraft(base, newKey())
	return c
}

func (c *Controller) Draft() Draft { return c.draft }

// LastCommitted returns the draft of the most recent successful commit.
func (c *Controller) LastCommitted() (Draft, bool) {
	if c.committed == nil {
		return Draft{}, false
	}
	return *c.committed, true
}

// Restore resumes a previously saved draft, e.g. after the register
// restarted mid-sale.
func (c *Controller) Restore(d Draft) {
	if d.IdempotencyKey == "" {
		d.IdempotencyKey = c.newKey()
	}
	c.draft = d
	c.unresolved = false
}

// Discard drops the draft and starts over with a new key.
func (c *Controller) Discard() {
	c.draft = NewDraft(c.base, c.newKey())
	c.unresolved = false
}

// Catalog returns the cached snapshot, fetching it on first use or after a
// commit made it stale.
func (c *Controller) Catalog(ctx context.Context) (*catalogdomain.Snapshot, error) {
	if c.snapshot != nil {
		return c.snapshot, nil
	}
	return c.Refresh(ctx)
}

func (c *Controller) Refresh(ctx context.Context) (*catalogdomain.Snapshot, error) {
	snapshot, err := c.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.snapshot = snapshot
	return snapshot, nil
}

func (c *Controller) Next() error {
	next, err := c.draft.Next()
	if err != nil {
		return err
	}
	c.draft = next
	return nil
}

func (c *Controller) Back() error {
	next, err := c.draft.Back()
	if err != nil {
		return err
	}
	c.draft = next
	return nil
}

func (c *Controller) SelectClient(ctx context.Context, clientID string) error {
	snapshot, err := c.Catalog(ctx)
	if err != nil {
		return err
	}
	for _, client := range snapshot.Clients {
		if client.ID == clientID {
			next, err := c.draft.SelectClient(Client{ID: client.ID, Name: client.Name})
			if err != nil {
				return err
			}
			c.draft = next
			return nil
		}
	}
	return saledomain.ErrClientNotFound
}

// QuickCreateClient creates a client from the register and selects it.
func (c *Controller) QuickCreateClient(ctx context.Context, req clientdomain.CreateRequest) (*clientdomain.Response, error) {
	if c.draft.Stage != StageSelectingClient {
		return nil, ErrWrongStage
	}
	created, err := c.catalog.CreateClient(ctx, req)
	if err != nil {
		return nil, err
	}
	next, err := c.draft.SelectClient(Client{ID: created.ID, Name: created.Name})
	if err != nil {
		return nil, err
	}
	c.draft = next
	if c.snapshot != nil {
		c.snapshot.Clients = append(c.snapshot.Clients, *created)
	}
	return created, nil
}

func (c *Controller) AddProduct(ctx context.Context, productID string) ([]cart.Warning, error) {
	product, err := c.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	next, warnings, err := c.draft.AddProduct(product)
	if err != nil {
		return nil, err
	}
	c.draft = next
	return warnings, nil
}

func (c *Controller) SetQuantity(ctx context.Context, productID string, qty int64) error {
	product, err := c.product(ctx, productID)
	if err != nil {
		return err
	}
	next, err := c.draft.SetQuantity(product, qty)
	if err != nil {
		return err
	}
	c.draft = next
	return nil
}

func (c *Controller) RemoveLine(productID string) error {
	next, err := c.draft.RemoveLine(productID)
	if err != nil {
		return err
	}
	c.draft = next
	return nil
}

func (c *Controller) ConfigurePayment(p Payment) error {
	next, err := c.draft.ConfigurePayment(p)
	if err != nil {
		return err
	}
	if !c.policy.Get().AllowsPaymentMethod(next.Payment.Method) {
		return ErrInvalidMethod
	}
	c.draft = next
	return nil
}

// Confirm commits the draft. On success the draft resets with a new key and
// the catalog is refetched on next use. On failure the draft is left as is.
//
// When an earlier attempt ended without a known outcome, the sale is looked
// up by key first and only re-sent if nothing was stored.
func (c *Controller) Confirm(ctx context.Context) (*saledomain.CommitResult, error) {
	req, err := c.draft.CommitRequest()
	if err != nil {
		return nil, err
	}

	if c.unresolved {
		stored, err := c.committer.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		c.unresolved = false
		if stored != nil {
			c.log.Info("recovered sale after unknown outcome",
				zap.String("sale_id", stored.ID),
				zap.String("idempotency_key", req.IdempotencyKey),
			)
			return c.complete(&saledomain.CommitResult{Sale: *stored, Replayed: true}), nil
		}
	}

	result, err := c.committer.Commit(ctx, req)
	if err != nil {
		if outcomeUnknown(err) {
			c.unresolved = true
		}
		c.log.Warn("sale commit failed",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Bool("unresolved", c.unresolved),
			zap.Error(err),
		)
		return nil, err
	}
	return c.complete(result), nil
}

func (c *Controller) complete(result *saledomain.CommitResult) *saledomain.CommitResult {
	done := c.draft
	done.Stage = StageCommitted
	c.committed = &done
	c.draft = NewDraft(c.base, c.newKey())
	c.snapshot = nil
	return result
}

// outcomeUnknown reports whether the sale may exist despite err. Conflicts
// on the key mean an earlier attempt was stored or still running.
func outcomeUnknown(err error) bool {
	return errors.Is(err, saledomain.ErrPersistenceFailure) ||
		errors.Is(err, saledomain.ErrCommitInProgress) ||
		errors.Is(err, saledomain.ErrIdempotencyKeyConflict)
}

func (c *Controller) product(ctx context.Context, productID string) (cart.Product, error) {
	snapshot, err := c.Catalog(ctx)
	if err != nil {
		return cart.Product{}, err
	}
	for _, p := range snapshot.Products {
		if p.ID == productID {
			return toCartProduct(p), nil
		}
	}
	return cart.Product{}, &saledomain.ProductError{ProductID: productID}
}

func toCartProduct(p productdomain.Response) cart.Product {
	return cart.Product{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		TaxRate:   p.TaxRate,
		Stock:     p.Stock,
	}
}
