package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	"github.com/smallbiznis/pos/internal/clock"
	"github.com/smallbiznis/pos/internal/config"
	obslogger "github.com/smallbiznis/pos/internal/observability/logger"
	"github.com/smallbiznis/pos/internal/observability/metrics"
	"github.com/smallbiznis/pos/internal/orgcontext"
	"github.com/smallbiznis/pos/internal/pricing"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	"github.com/smallbiznis/pos/internal/ratelimit"
	"github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/smallbiznis/pos/pkg/db"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Config      config.Config
	Repo        domain.Repository
	Products    productdomain.Repository
	Clients     clientdomain.Repository
	Policy      *config.SalesPolicyHolder
	Clock       clock.Clock                  `optional:"true"`
	Limiter     *ratelimit.SaleCommitLimiter `optional:"true"`
	Invalidator catalogdomain.Invalidator    `optional:"true"`
	Metrics     *metrics.Metrics             `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	products     productdomain.Repository
	clients      clientdomain.Repository
	policy       *config.SalesPolicyHolder
	clock        clock.Clock
	limiter      *ratelimit.SaleCommitLimiter
	invalidator  catalogdomain.Invalidator
	metrics      *metrics.Metrics
	baseCurrency string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	base := pricing.NormalizeCurrency(p.Config.Sales.BaseCurrency)
	if base == "" {
		base = "USD"
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("sale.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		products:     p.Products,
		clients:      p.Clients,
		policy:       p.Policy,
		clock:        clk,
		limiter:      p.Limiter,
		invalidator:  p.Invalidator,
		metrics:      p.Metrics,
		baseCurrency: base,
	}
}

// Commit validates, prices and persists a sale in one transaction: the
// header, its lines and every stock decrement land together or not at all.
// A key that was already committed with the same payload returns the stored
// sale with Replayed set and writes nothing.
func (s *Service) Commit(ctx context.Context, req domain.CommitRequest) (*domain.CommitResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	log := obslogger.WithContext(ctx, s.log)

	input, err := s.normalize(req)
	if err != nil {
		s.metrics.RecordSaleCommitFailure(ctx, orgID.String(), domain.Kind(err))
		return nil, err
	}
	hash, err := requestHash(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, input.key)
	if err != nil {
		return nil, s.persistenceFailure(ctx, log, orgID, err)
	}
	if existing != nil {
		return s.replay(ctx, orgID, existing, hash)
	}

	token, locked, err := s.limiter.TryLockIdempotencyKey(ctx, orgID.String(), input.key)
	switch {
	case err != nil:
		// the unique index still rejects a second insert
		log.Warn("idempotency lock unavailable", zap.Error(err))
	case !locked:
		s.metrics.RecordSaleCommitFailure(ctx, orgID.String(), domain.Kind(domain.ErrCommitInProgress))
		return nil, domain.ErrCommitInProgress
	default:
		defer func() {
			if err := s.limiter.ReleaseIdempotencyKey(context.WithoutCancel(ctx), orgID.String(), input.key, token); err != nil {
				log.Warn("idempotency lock release failed", zap.Error(err))
			}
		}()
	}

	now := s.clock.Now()
	actor := orgcontext.ActorIDFromContext(ctx)

	var (
		sale     *domain.Sale
		lines    []domain.SaleLine
		totals   pricing.Totals
		lowStock []domain.LowStockProduct
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.clientID != nil {
			client, err := s.clients.FindByID(ctx, tx, orgID, *input.clientID)
			if err != nil {
				return err
			}
			if client == nil {
				return domain.ErrClientNotFound
			}
		}

		productIDs, requested := aggregate(input.lines)
		locked, err := s.products.LockForSale(ctx, tx, orgID, productIDs)
		if err != nil {
			return err
		}
		// A commit with this key may have finished while we waited on the
		// row locks. It must replay, not be judged against the stock it took.
		committed, err := s.repo.FindByIdempotencyKey(ctx, tx, orgID, input.key)
		if err != nil {
			return err
		}
		if committed != nil {
			return domain.ErrDuplicateSubmission
		}

		byID := make(map[snowflake.ID]productdomain.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		for _, id := range productIDs {
			p, ok := byID[id]
			if !ok || !p.Active {
				return &domain.ProductError{ProductID: id.String()}
			}
		}
		for _, id := range productIDs {
			if p := byID[id]; requested[id] > p.Stock {
				return &domain.StockError{ProductID: id.String(), Requested: requested[id], Available: p.Stock}
			}
		}

		pricingLines := make([]pricing.Line, 0, len(input.lines))
		for _, line := range input.lines {
			p := byID[line.productID]
			pricingLines = append(pricingLines, pricing.Line{
				ProductID: line.productID.String(),
				Quantity:  line.quantity,
				UnitPrice: p.UnitPrice,
				TaxRate:   p.TaxRate,
			})
		}
		totals, err = pricing.ComputeTotals(pricing.Input{
			Lines:        pricingLines,
			Discount:     input.discount,
			Shipping:     input.shipping,
			Currency:     input.currency,
			BaseCurrency: s.baseCurrency,
			ExchangeRate: input.exchangeRate,
		})
		if err != nil {
			return mapPricingError(err)
		}

		sale = &domain.Sale{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			ClientID:       input.clientID,
			Subtotal:       totals.Subtotal,
			TaxTotal:       totals.TaxTotal,
			Discount:       totals.Discount,
			Shipping:       totals.Shipping,
			GrandTotal:     totals.GrandTotal,
			Currency:       totals.Currency,
			PaymentMethod:  input.paymentMethod,
			Status:         domain.StatusCompleted,
			Notes:          input.notes,
			IdempotencyKey: input.key,
			RequestHash:    hash,
			CreatedBy:      actor,
			CreatedAt:      now,
		}
		if totals.ExchangeRate != nil {
			sale.ExchangeRate = decimal.NewNullDecimal(*totals.ExchangeRate)
		}
		if err := s.repo.InsertSale(ctx, tx, sale); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateSubmission
			}
			return err
		}

		lines = make([]domain.SaleLine, 0, len(totals.Lines))
		for i, priced := range totals.Lines {
			source := input.lines[i]
			lines = append(lines, domain.SaleLine{
				ID:          s.genID.Generate(),
				SaleID:      sale.ID,
				OrgID:       orgID,
				LineNo:      i + 1,
				ProductID:   source.productID,
				ProductName: byID[source.productID].Name,
				Quantity:    priced.Quantity,
				UnitPrice:   priced.UnitPrice,
				TaxRate:     priced.TaxRate,
				LineTotal:   priced.Total,
				TaxAmount:   priced.Tax,
				CreatedAt:   now,
			})
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}

		for _, id := range productIDs {
			applied, err := s.products.DecrementStock(ctx, tx, orgID, id, requested[id], now)
			if err != nil {
				return err
			}
			if !applied {
				return &domain.StockError{ProductID: id.String(), Requested: requested[id], Available: byID[id].Stock}
			}
			p := byID[id]
			remaining := p.Stock - requested[id]
			if p.MinStock > 0 && remaining <= p.MinStock {
				lowStock = append(lowStock, domain.LowStockProduct{
					ProductID: id.String(),
					Name:      p.Name,
					Stock:     remaining,
					MinStock:  p.MinStock,
				})
			}
		}
		return nil
	})

	if errors.Is(err, domain.ErrDuplicateSubmission) {
		existing, lookupErr := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, input.key)
		if lookupErr != nil {
			return nil, s.persistenceFailure(ctx, log, orgID, lookupErr)
		}
		if existing == nil {
			return nil, s.persistenceFailure(ctx, log, orgID, err)
		}
		return s.replay(ctx, orgID, existing, hash)
	}
	if err != nil {
		if domain.Kind(err) != domain.ErrPersistenceFailure.Error() {
			if errors.Is(err, domain.ErrInsufficientStock) {
				s.metrics.RecordStockRejection(ctx, orgID.String())
			}
			s.metrics.RecordSaleCommitFailure(ctx, orgID.String(), domain.Kind(err))
			log.Info("sale commit rejected", zap.String("idempotency_key", input.key), zap.Error(err))
			return nil, err
		}
		return nil, s.persistenceFailure(ctx, log, orgID, err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, orgID)
	}
	s.metrics.RecordSaleCommitted(ctx, orgID.String(), sale.PaymentMethod, sale.Currency)
	log.Info("sale committed",
		zap.String("sale_id", sale.ID.String()),
		zap.String("idempotency_key", sale.IdempotencyKey),
		zap.String("grand_total", pricing.FormatMoney(sale.GrandTotal)),
		zap.Int("lines", len(lines)),
	)

	result := &domain.CommitResult{
		Sale:     toResponse(sale, lines),
		LowStock: lowStock,
	}
	for _, w := range totals.Warnings {
		result.Warnings = append(result.Warnings, string(w))
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	saleID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || saleID == 0 {
		return nil, domain.ErrInvalidID
	}

	sale, err := s.repo.FindByID(ctx, s.db, orgID, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	return s.withLines(ctx, orgID, sale)
}

func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return nil, domain.ErrInvalidIdempotencyKey
	}

	sale, err := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, key)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	return s.withLines(ctx, orgID, sale)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	if req.CreatedFrom != nil && req.CreatedTo != nil && req.CreatedFrom.After(*req.CreatedTo) {
		return domain.ListResponse{}, domain.ErrInvalidTimeRange
	}

	filter := domain.ListFilter{
		OrgID:         orgID,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Currency:      pricing.NormalizeCurrency(req.Currency),
		CreatedFrom:   req.CreatedFrom,
		CreatedTo:     req.CreatedTo,
		Limit:         pagination.NormalizePageSize(req.PageSize),
	}

	if value := strings.TrimSpace(req.ClientID); value != "" {
		clientID, err := snowflake.ParseString(value)
		if err != nil || clientID == 0 {
			return domain.ListResponse{}, domain.ErrInvalidClientID
		}
		filter.ClientID = &clientID
	}

	if value := strings.ToLower(strings.TrimSpace(req.Status)); value != "" {
		status := domain.Status(value)
		if status != domain.StatusCompleted && status != domain.StatusReversed {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := cursor.CursorTime()
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.SaleCursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.Page(items, filter.Limit, func(sale *domain.Sale) pagination.Cursor {
		return pagination.Cursor{
			ID:        sale.ID.String(),
			CreatedAt: sale.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})

	saleIDs := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		saleIDs = append(saleIDs, item.ID)
	}
	lines, err := s.repo.ListLines(ctx, s.db, orgID, saleIDs)
	if err != nil {
		return domain.ListResponse{}, err
	}
	linesBySale := make(map[snowflake.ID][]domain.SaleLine, len(items))
	for _, line := range lines {
		linesBySale[line.SaleID] = append(linesBySale[line.SaleID], line)
	}

	sales := make([]domain.Response, 0, len(items))
	for _, item := range items {
		sales = append(sales, toResponse(item, linesBySale[item.ID]))
	}
	return domain.ListResponse{PageInfo: pageInfo, Sales: sales}, nil
}

func (s *Service) replay(ctx context.Context, orgID snowflake.ID, existing *domain.Sale, hash string) (*domain.CommitResult, error) {
	if existing.RequestHash != "" && existing.RequestHash != hash {
		s.metrics.RecordSaleCommitFailure(ctx, orgID.String(), domain.Kind(domain.ErrIdempotencyKeyConflict))
		return nil, domain.ErrIdempotencyKeyConflict
	}

	resp, err := s.withLines(ctx, orgID, existing)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDuplicateSubmission(ctx, orgID.String())
	obslogger.WithContext(ctx, s.log).Info("sale commit replayed",
		zap.String("sale_id", existing.ID.String()),
		zap.String("idempotency_key", existing.IdempotencyKey),
	)
	return &domain.CommitResult{Sale: *resp, Replayed: true}, nil
}

func (s *Service) withLines(ctx context.Context, orgID snowflake.ID, sale *domain.Sale) (*domain.Response, error) {
	lines, err := s.repo.ListLines(ctx, s.db, orgID, []snowflake.ID{sale.ID})
	if err != nil {
		return nil, err
	}
	resp := toResponse(sale, lines)
	return &resp, nil
}

func (s *Service) persistenceFailure(ctx context.Context, log *zap.Logger, orgID snowflake.ID, err error) error {
	s.metrics.RecordSaleCommitFailure(ctx, orgID.String(), domain.ErrPersistenceFailure.Error())
	log.Error("sale commit failed", zap.Error(err))
	return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
}

// aggregate returns the distinct product ids in ascending order, so row
// locks are always taken in the same order, and the summed quantity of each.
func aggregate(lines []commitLine) ([]snowflake.ID, map[snowflake.ID]int64) {
	requested := make(map[snowflake.ID]int64, len(lines))
	ids := make([]snowflake.ID, 0, len(lines))
	for _, line := range lines {
		if _, seen := requested[line.productID]; !seen {
			ids = append(ids, line.productID)
		}
		requested[line.productID] += line.quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, requested
}

func mapPricingError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrInvalidExchangeRate):
		return domain.ErrInvalidExchangeRate
	case errors.Is(err, pricing.ErrInvalidCurrency):
		return domain.ErrInvalidCurrency
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return domain.ErrInvalidDiscount
	case errors.Is(err, pricing.ErrInvalidShipping):
		return domain.ErrInvalidShipping
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return domain.ErrInvalidQuantity
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
}

func toResponse(sale *domain.Sale, lines []domain.SaleLine) domain.Response {
	resp := domain.Response{
		ID:             sale.ID.String(),
		OrganizationID: sale.OrgID.String(),
		Lines:          make([]domain.LineResponse, 0, len(lines)),
		Subtotal:       pricing.FormatMoney(sale.Subtotal),
		TaxTotal:       pricing.FormatMoney(sale.TaxTotal),
		Discount:       pricing.FormatMoney(sale.Discount),
		Shipping:       pricing.FormatMoney(sale.Shipping),
		GrandTotal:     pricing.FormatMoney(sale.GrandTotal),
		Currency:       sale.Currency,
		PaymentMethod:  sale.PaymentMethod,
		Status:         sale.Status,
		Notes:          sale.Notes,
		IdempotencyKey: sale.IdempotencyKey,
		CreatedBy:      sale.CreatedBy,
		CreatedAt:      sale.CreatedAt,
	}
	if sale.ClientID != nil {
		clientID := sale.ClientID.String()
		resp.ClientID = &clientID
	}
	if sale.ExchangeRate.Valid {
		rate := sale.ExchangeRate.Decimal.String()
		converted := pricing.FormatMoney(pricing.Round(sale.GrandTotal.Mul(sale.ExchangeRate.Decimal)))
		resp.ExchangeRate = &rate
		resp.ConvertedTotal = &converted
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, domain.LineResponse{
			ProductID:   line.ProductID.String(),
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   pricing.FormatMoney(line.UnitPrice),
			TaxRate:     line.TaxRate.String(),
			LineTotal:   pricing.FormatMoney(line.LineTotal),
			TaxAmount:   pricing.FormatMoney(line.TaxAmount),
		})
	}
	return resp
}
