// Package seed fills a demo tenant with products and clients so a fresh
// install can ring up a sale right away.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/config"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type demoProduct struct {
	name     string
	price    string
	cost     string
	taxRate  int64
	stock    int64
	minStock int64
}

var demoProducts = []demoProduct{
	{name: "Espresso Beans 1kg", price: "18.50", cost: "11.00", taxRate: 16, stock: 40, minStock: 5},
	{name: "Ground Coffee 500g", price: "10.00", cost: "6.20", taxRate: 16, stock: 60, minStock: 10},
	{name: "Paper Cups (50)", price: "4.25", cost: "2.10", taxRate: 16, stock: 120, minStock: 20},
	{name: "Brown Sugar 1kg", price: "2.80", cost: "1.50", taxRate: 0, stock: 8, minStock: 10},
}

type demoClient struct {
	name           string
	taxID          string
	phone          string
	classification clientdomain.Classification
}

var demoClients = []demoClient{
	{name: "Walk-in Customer", classification: clientdomain.ClassificationRegular},
	{name: "Café Central", taxID: "J-40012345-6", phone: "+58 212 555 0101", classification: clientdomain.ClassificationBusiness},
	{name: "María Pérez", phone: "+58 414 555 0199", classification: clientdomain.ClassificationPremium},
}

// EnsureDemo seeds the demo tenant. Rows are matched by product code and
// client name, so running it again adds nothing.
func EnsureDemo(db *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.DemoOrgID <= 0 {
		return errors.New("seed requires a positive demo organization id")
	}
	if log == nil {
		log = zap.NewNop()
	}

	node, err := snowflake.NewNode(cfg.SnowflakeID)
	if err != nil {
		return err
	}

	orgID := snowflake.ID(cfg.DemoOrgID)
	ctx := context.Background()
	var created int
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range demoProducts {
			ok, err := ensureProductTx(tx, node, orgID, p)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		for _, c := range demoClients {
			ok, err := ensureClientTx(tx, node, orgID, c)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("demo data ready", zap.String("org_id", orgID.String()), zap.Int("created", created))
	return nil
}

func ensureProductTx(tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID, p demoProduct) (bool, error) {
	code := slug.Make(p.name)

	var existing productdomain.Product
	err := tx.Where("org_id = ? AND code = ?", orgID, code).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	now := time.Now().UTC()
	product := productdomain.Product{
		ID:        node.Generate(),
		OrgID:     orgID,
		Code:      code,
		Name:      p.name,
		UnitPrice: decimal.RequireFromString(p.price),
		UnitCost:  decimal.RequireFromString(p.cost),
		TaxRate:   decimal.NewFromInt(p.taxRate),
		Stock:     p.stock,
		MinStock:  p.minStock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, tx.Create(&product).Error
}

func ensureClientTx(tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID, c demoClient) (bool, error) {
	var existing clientdomain.Client
	err := tx.Where("org_id = ? AND name = ?", orgID, c.name).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	now := time.Now().UTC()
	client := clientdomain.Client{
		ID:             node.Generate(),
		OrgID:          orgID,
		Name:           c.name,
		TaxID:          optional(c.taxID),
		Phone:          optional(c.phone),
		Classification: c.classification,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return true, tx.Create(&client).Error
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
