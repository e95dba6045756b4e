package importer

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/verdantlabs/seedbank/modules/catalog/infrastructure/persistence"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/classify"
	importerpersistence "github.com/verdantlabs/seedbank/modules/importer/infrastructure/persistence"
	"github.com/verdantlabs/seedbank/modules/importer/presentation/controllers"
	"github.com/verdantlabs/seedbank/modules/importer/services"
	"github.com/verdantlabs/seedbank/pkg/application"
	"github.com/verdantlabs/seedbank/pkg/configuration"
	"github.com/verdantlabs/seedbank/pkg/jobqueue"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
)

//go:embed infrastructure/persistence/schema/importer-schema.sql
var schemaSQL string

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	app.Migrations().RegisterSchema("importer", schemaSQL)

	imports := importerpersistence.NewImportRepository()
	rows := importerpersistence.NewImportRowRepository()
	taxonomyRepo := persistence.NewTaxonomyRepository()
	sources := persistence.NewSeedSourceRepository()
	purchases := persistence.NewSeedPurchaseRepository()

	app.RegisterServices(
		services.NewImportService(imports, rows, app.EventPublisher(), jobqueue.NewPublisher()),
		services.NewParseService(imports, rows, app.EventPublisher(), conf.Logger()),
		services.NewMappingService(
			imports,
			rows,
			taxonomyRepo,
			sources,
			classify.NewOpenAIClassifier(conf.Classifier),
			app.EventPublisher(),
			conf.Classifier.BatchSize,
			conf.Logger(),
		),
		services.NewReviewService(imports, rows),
		services.NewExecutionService(
			imports,
			rows,
			taxonomyRepo,
			sources,
			purchases,
			app.EventPublisher(),
			conf.Logger(),
		),
	)
	app.RegisterControllers(
		controllers.NewImportAPIController(app),
		controllers.NewStreamController(app),
	)

	// Progress events fan out to every connected reviewer.
	app.EventPublisher().Subscribe(func(event *seedimport.ProgressEvent) {
		m.broadcast(app, "import.progress", event.Import)
	})
	app.EventPublisher().Subscribe(func(event *seedimport.CreatedEvent) {
		m.broadcast(app, "import.created", event.Import)
	})

	return nil
}

func (m *Module) broadcast(app application.Application, kind string, imp *seedimport.Import) {
	// Headless entrypoints run without a hub.
	if app.Websocket() == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"kind": kind,
		"import": map[string]any{
			"id":            imp.ID,
			"status":        string(imp.Status),
			"total_rows":    imp.TotalRows,
			"parsed_rows":   imp.ParsedRows,
			"mapped_rows":   imp.MappedRows,
			"executed_rows": imp.ExecutedRows,
			"error_message": imp.ErrorMessage,
		},
	})
	if err != nil {
		configuration.Use().Logger().WithError(err).Warn("failed to encode progress broadcast")
		return
	}
	app.Websocket().BroadcastToChannel(application.ChannelImports, payload)
}

func (m *Module) Name() string {
	return "importer"
}

// RegisterJobHandlers binds the pipeline stage topics to their
// services. The worker owns the mux lifecycle.
func RegisterJobHandlers(mux *jobqueue.Mux, app application.Application) {
	parse := app.Service(services.ParseService{}).(*services.ParseService)
	mapping := app.Service(services.MappingService{}).(*services.MappingService)
	execution := app.Service(services.ExecutionService{}).(*services.ExecutionService)

	mux.Handle(services.TopicParse, stageHandler(parse.Parse))
	mux.Handle(services.TopicMap, stageHandler(mapping.Map))
	mux.Handle(services.TopicExecute, stageHandler(execution.Execute))
}

func stageHandler(run func(ctx context.Context, importID uint) error) jobqueue.HandlerFunc {
	return func(ctx context.Context, job jobqueue.DispatchedJob) error {
		importID, err := services.DecodeJobPayload(job.Payload)
		if err != nil {
			return err
		}
		return run(ctx, importID)
	}
}
