package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	clientrepo "github.com/smallbiznis/pos/internal/client/repository"
	"github.com/smallbiznis/pos/internal/clock"
	"github.com/smallbiznis/pos/internal/config"
	"github.com/smallbiznis/pos/internal/migration"
	"github.com/smallbiznis/pos/internal/orgcontext"
	productrepo "github.com/smallbiznis/pos/internal/product/repository"
	"github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/smallbiznis/pos/internal/sale/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const embeddedPGPort = 54329

var (
	pgOnce   sync.Once
	pgServer *embeddedpostgres.EmbeddedPostgres
	pgDB     *gorm.DB
	pgErr    error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgServer != nil {
		_ = pgServer.Stop()
	}
	os.Exit(code)
}

func startPostgres() (*gorm.DB, error) {
	pgOnce.Do(func() {
		server := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
			Port(embeddedPGPort).
			Database("pos_test"))
		if pgErr = server.Start(); pgErr != nil {
			return
		}
		pgServer = server

		dsn := fmt.Sprintf("host=localhost user=postgres password=postgres dbname=pos_test port=%d sslmode=disable TimeZone=UTC", embeddedPGPort)
		pgDB, pgErr = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if pgErr != nil {
			return
		}
		sqlDB, err := pgDB.DB()
		if err != nil {
			pgErr = err
			return
		}
		sqlDB.SetMaxOpenConns(20)
		pgErr = migration.RunMigrations(sqlDB)
	})
	return pgDB, pgErr
}

// setupPostgres runs the commit service against a real postgres so row locks
// are exercised. Opt in with POS_EMBEDDED_PG=1; the first run downloads the
// postgres binaries. Tests share one server and isolate by organization.
func setupPostgres(t *testing.T) *fixture {
	t.Helper()
	if os.Getenv("POS_EMBEDDED_PG") != "1" {
		t.Skip("set POS_EMBEDDED_PG=1 to run against embedded postgres")
	}

	db, err := startPostgres()
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Config:   config.Config{Sales: config.SalesConfig{BaseCurrency: "USD"}},
		Repo:     repository.Provide(),
		Products: productrepo.Provide(),
		Clients:  clientrepo.Provide(),
		Policy:   config.NewStaticSalesPolicyHolder(config.DefaultSalesPolicy()),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
	}).(*Service)

	org := node.Generate()
	return &fixture{
		svc:  svc,
		db:   db,
		node: node,
		org:  org,
		ctx:  orgcontext.WithActorID(orgcontext.WithOrgID(context.Background(), org.Int64()), "cashier-1"),
		spy:  &invalidatorSpy{},
	}
}

func TestPostgresConcurrentCommitsNeverOversell(t *testing.T) {
	f := setupPostgres(t)
	p := f.product(t, "Contended", "10.00", "16", 5, 0)

	const buyers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Commit(f.ctx, cashSale(fmt.Sprintf("pg-race-%d", i), line(p, 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, success)
	assert.Equal(t, buyers-5, rejected)
	assert.Equal(t, int64(0), f.stockOf(t, p.ID))
	assert.Equal(t, int64(5), f.countOrg(t, &domain.Sale{}))
	assert.Equal(t, int64(5), f.countOrg(t, &domain.SaleLine{}))
}

func TestPostgresConcurrentRetriesStoreOneSale(t *testing.T) {
	f := setupPostgres(t)
	p := f.product(t, "Retried", "10.00", "16", 10, 0)

	const retries = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Commit(f.ctx, cashSale("pg-same-key", line(p, 3)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			ids[result.Sale.ID]++
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, int64(7), f.stockOf(t, p.ID))
	assert.Equal(t, int64(1), f.countOrg(t, &domain.Sale{}))
}

func (f *fixture) countOrg(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where("org_id = ?", f.org).Count(&n).Error)
	return n
}
