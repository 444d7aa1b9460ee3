package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/pos/pkg/db/pagination"
)

// Entry is one mutation to record. Org and actor come from the request
// context when not set here.
type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  ActorType
	ActorID    string
	Metadata   map[string]any
}

// SensitiveKeys are metadata keys masked before an entry is stored.
var SensitiveKeys = []string{"tax_id", "phone"}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
