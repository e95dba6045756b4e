package modules

import (
	"github.com/verdantlabs/seedbank/modules/catalog"
	"github.com/verdantlabs/seedbank/modules/importer"
	"github.com/verdantlabs/seedbank/pkg/application"
)

var BuiltInModules = []application.Module{
	catalog.NewModule(),
	importer.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
