package catalog

import (
	_ "embed"

	"github.com/verdantlabs/seedbank/modules/catalog/infrastructure/persistence"
	"github.com/verdantlabs/seedbank/modules/catalog/presentation/controllers"
	"github.com/verdantlabs/seedbank/modules/catalog/services"
	"github.com/verdantlabs/seedbank/pkg/application"
)

//go:embed infrastructure/persistence/schema/catalog-schema.sql
var schemaSQL string

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema("catalog", schemaSQL)
	app.RegisterServices(
		services.NewTaxonomyService(persistence.NewTaxonomyRepository(), app.EventPublisher()),
		services.NewSeedSourceService(persistence.NewSeedSourceRepository()),
		services.NewSeedPurchaseService(persistence.NewSeedPurchaseRepository()),
	)
	app.RegisterControllers(
		controllers.NewCatalogAPIController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "catalog"
}
