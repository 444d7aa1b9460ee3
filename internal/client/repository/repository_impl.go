package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, org_id, name, tax_id, phone, classification, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrgID,
		client.Name,
		client.TaxID,
		client.Phone,
		client.Classification,
		client.Metadata,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, tax_id, phone, classification, metadata, created_at, updated_at
		 FROM clients WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("org_id = ?", orgID)
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+filter.Name+"%")
	}
	if filter.TaxID != "" {
		stmt = stmt.Where("tax_id = ?", filter.TaxID)
	}
	if filter.Classification != "" {
		stmt = stmt.Where("classification = ?", filter.Classification)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, err := cursor.CursorTime()
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	err := stmt.
		Order("created_at desc, id desc").
		Limit(pagination.NormalizePageSize(page.PageSize) + 1).
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// CursorOf is the pagination cursor for a client row.
func CursorOf(client *domain.Client) pagination.Cursor {
	return pagination.Cursor{
		ID:        client.ID.String(),
		CreatedAt: client.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
