package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/smallbiznis/pos/internal/audit/domain"
	"gorm.io/gorm"
)

var auditColumns = []string{
	"id", "org_id", "actor_type", "actor_id", "action", "target_type", "target_id",
	"metadata", "ip_address", "user_agent", "created_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	// JSONMap implements driver.Valuer; squirrel hands it through untouched.
	query, args, err := sq.Insert("audit_logs").
		Columns(auditColumns...).
		Values(
			entry.ID,
			entry.OrgID,
			entry.ActorType,
			entry.ActorID,
			entry.Action,
			entry.TargetType,
			entry.TargetID,
			entry.Metadata,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(query, args...).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := sq.Select(auditColumns...).
		From("audit_logs").
		Where(sq.Eq{"org_id": filter.OrgID})

	for column, value := range map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_type":  filter.ActorType,
	} {
		if value != "" {
			stmt = stmt.Where(sq.Eq{column: value})
		}
	}
	if filter.StartAt != nil {
		stmt = stmt.Where(sq.GtOrEq{"created_at": filter.StartAt.UTC()})
	}
	if filter.EndAt != nil {
		stmt = stmt.Where(sq.LtOrEq{"created_at": filter.EndAt.UTC()})
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

	var logs []*domain.AuditLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
