package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Classification string

const (
	ClassificationRegular  Classification = "regular"
	ClassificationPremium  Classification = "premium"
	ClassificationBusiness Classification = "business"
)

// Valid reports whether c is one of the known classifications.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationRegular, ClassificationPremium, ClassificationBusiness:
		return true
	}
	return false
}

type Client struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_clients_org_tax_id,priority:1" json:"organization_id"`
	Name           string            `gorm:"not null" json:"name"`
	TaxID          *string           `gorm:"column:tax_id;uniqueIndex:ux_clients_org_tax_id,priority:2" json:"tax_id,omitempty"`
	Phone          *string           `gorm:"column:phone" json:"phone,omitempty"`
	Classification Classification    `gorm:"not null;default:'regular'" json:"classification"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
