package catalog

import (
	"github.com/smallbiznis/pos/internal/catalog/domain"
	"github.com/smallbiznis/pos/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.NewSnapshotStore),
	fx.Provide(func(store *service.SnapshotStore) domain.Invalidator { return store }),
	fx.Provide(service.New),
)
