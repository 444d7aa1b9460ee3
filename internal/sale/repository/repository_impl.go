package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pos/internal/sale/domain"
	"gorm.io/gorm"
)

var saleColumns = []string{
	"id", "org_id", "client_id", "subtotal", "tax_total", "discount", "shipping", "grand_total",
	"currency", "exchange_rate", "payment_method", "status", "notes", "idempotency_key",
	"request_hash", "created_by", "created_at",
}

var lineColumns = []string{
	"id", "sale_id", "org_id", "line_no", "product_id", "product_name", "quantity",
	"unit_price", "tax_rate", "line_total", "tax_amount", "created_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertSale(ctx context.Context, db *gorm.DB, sale *domain.Sale) error {
	query, args, err := sq.Insert("sales").
		Columns(saleColumns...).
		Values(
			sale.ID,
			sale.OrgID,
			sale.ClientID,
			sale.Subtotal,
			sale.TaxTotal,
			sale.Discount,
			sale.Shipping,
			sale.GrandTotal,
			sale.Currency,
			sale.ExchangeRate,
			sale.PaymentMethod,
			sale.Status,
			sale.Notes,
			sale.IdempotencyKey,
			sale.RequestHash,
			sale.CreatedBy,
			sale.CreatedAt,
		).
		ToSql()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(query, args...).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}

	stmt := sq.Insert("sale_lines").Columns(lineColumns...)
	for _, line := range lines {
		stmt = stmt.Values(
			line.ID,
			line.SaleID,
			line.OrgID,
			line.LineNo,
			line.ProductID,
			line.ProductName,
			line.Quantity,
			line.UnitPrice,
			line.TaxRate,
			line.LineTotal,
			line.TaxAmount,
			line.CreatedAt,
		)
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(query, args...).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Sale, error) {
	return r.findOne(ctx, db, sq.Eq{"org_id": orgID, "id": id})
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*domain.Sale, error) {
	return r.findOne(ctx, db, sq.Eq{"org_id": orgID, "idempotency_key": key})
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where sq.Eq) (*domain.Sale, error) {
	query, args, err := sq.Select(saleColumns...).From("sales").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}

	var sale domain.Sale
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&sale).Error; err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, orgID snowflake.ID, saleIDs []snowflake.ID) ([]domain.SaleLine, error) {
	if len(saleIDs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(saleIDs))
	for _, id := range saleIDs {
		ids = append(ids, id.Int64())
	}

	query, args, err := sq.Select(lineColumns...).
		From("sale_lines").
		Where(sq.Eq{"org_id": orgID, "sale_id": ids}).
		OrderBy("sale_id", "line_no").
		ToSql()
	if err != nil {
		return nil, err
	}

	var lines []domain.SaleLine
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Sale, error) {
	stmt := sq.Select(saleColumns...).
		From("sales").
		Where(sq.Eq{"org_id": filter.OrgID})

	if filter.ClientID != nil {
		stmt = stmt.Where(sq.Eq{"client_id": *filter.ClientID})
	}
	if filter.PaymentMethod != "" {
		stmt = stmt.Where(sq.Eq{"payment_method": filter.PaymentMethod})
	}
	if filter.Status != "" {
		stmt = stmt.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Currency != "" {
		stmt = stmt.Where(sq.Eq{"currency": filter.Currency})
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	if filter.Cursor != nil {
		stmt = stmt.Where(sq.Or{
			sq.Lt{"created_at": filter.Cursor.CreatedAt},
			sq.And{
				sq.Eq{"created_at": filter.Cursor.CreatedAt},
				sq.Lt{"id": filter.Cursor.ID},
			},
		})
	}

	stmt = stmt.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(uint64(filter.Limit + 1))
	}

	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}

	var sales []*domain.Sale
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
