package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

type executionFixture struct {
	svc       *ExecutionService
	imports   *fakeImportRepo
	rows      *fakeRowRepo
	taxonomy  *fakeTaxonomyRepo
	sources   *fakeSourceRepo
	purchases *fakePurchaseRepo
	bus       eventbus.EventBus
}

func newExecutionFixture() *executionFixture {
	f := &executionFixture{
		imports:   newFakeImportRepo(),
		rows:      &fakeRowRepo{},
		taxonomy:  newFakeTaxonomyRepo("Vegetable", "Herb"),
		sources:   &fakeSourceRepo{},
		purchases: &fakePurchaseRepo{},
		bus:       eventbus.NewEventPublisher(quietLogger()),
	}
	f.svc = NewExecutionService(
		f.imports,
		f.rows,
		f.taxonomy,
		f.sources,
		f.purchases,
		f.bus,
		quietLogger(),
	)
	return f
}

func TestExecutionService_Execute(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})

	germination := decimal.RequireFromString("0.85")
	cost := decimal.RequireFromString("3.50")
	year := 2021
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Cherokee Purple", SeedSourceName: "Baker Creek",
		YearPurchased: &year, GerminationRate: &germination, Cost: &cost,
		LotNumber: "CP-21", Quantity: "1 packet", Notes: "heirloom",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappedSubcategoryName: "Beefsteak", MappedSourceName: "Baker Creek",
		MappingStatus: importrow.MappingAccepted,
	})
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 3,
		VarietyName:         "Brandywine",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappingStatus:  importrow.MappingModified,
		DetectedUsedUp: true,
	})
	// Neither ai_mapped nor duplicate rows reach the catalog.
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 4,
		VarietyName:         "Roma",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappingStatus: importrow.MappingAIMapped,
	})
	dupOf := uint(1)
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 5,
		VarietyName:         "Cherokee Purple",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappingStatus: importrow.MappingAccepted, DuplicateOfRowID: &dupOf,
	})

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))

	assert.Equal(t, seedimport.StatusExecuted, imp.Status)
	assert.Equal(t, 2, imp.ExecutedRows)

	report := imp.Report
	require.NotNil(t, report)
	assert.Equal(t, 1, report.CategoriesCreated)
	assert.Equal(t, 1, report.SubcategoriesCreated)
	assert.Equal(t, 2, report.PlantsCreated)
	assert.Equal(t, 2, report.SourcesCreated)
	assert.Equal(t, 2, report.PurchasesCreated)
	assert.Equal(t, 0, report.RowsSkipped)
	assert.Empty(t, report.Errors)

	require.Len(t, f.purchases.purchases, 2)
	first := f.purchases.purchases[0]
	assert.Equal(t, 2021, first.YearPurchased)
	assert.Equal(t, "CP-21", first.LotNumber)
	assert.Equal(t, "1 packet", first.Quantity)
	require.NotNil(t, first.GerminationRate)
	assert.Equal(t, "0.85", first.GerminationRate.String())
	assert.False(t, first.UsedUp)

	// Missing year defaults to the current year; a depleted row carries
	// used_up into the purchase.
	second := f.purchases.purchases[1]
	assert.Equal(t, time.Now().Year(), second.YearPurchased)
	assert.True(t, second.UsedUp)
	require.NotNil(t, second.UsedUpAt)

	// A fully blank source resolves to the fallback, which counts as a
	// created source like any other.
	unknown, err := f.sources.GetByName(testContext(), "Unknown")
	require.NoError(t, err)
	assert.Equal(t, unknown.ID, second.SeedSourceID)
}

func TestExecutionService_ExecuteFallsBackToRawSource(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})

	// A row the classifier skipped keeps its raw source cell once the
	// reviewer accepts it; that name wins over the fallback.
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Cherokee Purple", SeedSourceName: "Baker Creek",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappingStatus: importrow.MappingAccepted,
	})

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))

	source, err := f.sources.GetByName(testContext(), "Baker Creek")
	require.NoError(t, err)
	require.Len(t, f.purchases.purchases, 1)
	assert.Equal(t, source.ID, f.purchases.purchases[0].SeedSourceID)
	assert.Equal(t, 1, imp.Report.SourcesCreated)

	_, err = f.sources.GetByName(testContext(), "Unknown")
	assert.ErrorIs(t, err, seedsource.ErrNotFound)
}

func TestExecutionService_ExecuteNewVarietyCarriesNotes(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})

	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Cherokee Purple", Notes: "heirloom, pink fruit",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappedSourceName: "Baker Creek",
		MappingStatus:    importrow.MappingAccepted,
	})

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))

	require.Len(t, f.taxonomy.varieties, 1)
	assert.Equal(t, "heirloom, pink fruit", f.taxonomy.varieties[0].Notes)
}

func TestExecutionService_ExecuteEmitsProgressOnEntry(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName:         "Cherokee Purple",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappingStatus: importrow.MappingAccepted,
	})

	var statuses []seedimport.Status
	f.bus.Subscribe(func(e *seedimport.ProgressEvent) {
		statuses = append(statuses, e.Import.Status)
	})

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))

	// The first event announces the transition into executing, before any
	// row is committed.
	require.NotEmpty(t, statuses)
	assert.Equal(t, seedimport.StatusExecuting, statuses[0])
	assert.Equal(t, seedimport.StatusExecuted, statuses[len(statuses)-1])
}

func TestExecutionService_ExecuteReusesExistingTaxonomy(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})

	for i, name := range []string{"Cherokee Purple", "Brandywine"} {
		f.rows.add(&importrow.ImportRow{
			ImportID: imp.ID, SheetName: "Vegetables", RowNumber: i + 2,
			VarietyName:         name,
			MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
			MappedSourceName: "Baker Creek",
			MappingStatus:    importrow.MappingAccepted,
		})
	}

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))

	// Two rows in the same category share one category and one source.
	assert.Equal(t, 1, imp.Report.CategoriesCreated)
	assert.Equal(t, 1, imp.Report.SourcesCreated)
	assert.Len(t, f.taxonomy.categories, 1)
	assert.Len(t, f.sources.sources, 1)
}

func TestExecutionService_ExecuteBackfillsSubcategory(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})

	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName:         "Sungold",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappingStatus: importrow.MappingAccepted,
	})
	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 3,
		VarietyName:         "Sungold",
		MappedPlantTypeName: "Vegetable", MappedCategoryName: "Tomato",
		MappedSubcategoryName: "Cherry",
		MappingStatus:         importrow.MappingModified,
	})

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))

	require.Len(t, f.taxonomy.varieties, 1)
	variety := f.taxonomy.varieties[0]
	require.NotNil(t, variety.PlantSubcategoryID)
	assert.Equal(t, 1, imp.Report.PlantsCreated)
	assert.Equal(t, 2, imp.Report.PurchasesCreated)
}

func TestExecutionService_ExecuteNoOpWhenNotMapped(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusExecuted})

	require.NoError(t, f.svc.Execute(testContext(), imp.ID))
	assert.Equal(t, seedimport.StatusExecuted, imp.Status)
	assert.Empty(t, f.purchases.purchases)
}

func TestExecutionService_ExecuteUnknownTypeFails(t *testing.T) {
	f := newExecutionFixture()
	imp := f.imports.add(&seedimport.Import{Status: seedimport.StatusMapped})

	f.rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName:         "Saguaro",
		MappedPlantTypeName: "Cactus", MappedCategoryName: "Columnar",
		MappingStatus: importrow.MappingAccepted,
	})

	err := f.svc.Execute(testContext(), imp.ID)
	require.Error(t, err)
	assert.Equal(t, seedimport.StatusFailed, imp.Status)
	assert.Contains(t, imp.ErrorMessage, "unknown plant type")

	require.NotNil(t, imp.Report)
	assert.Equal(t, 1, imp.Report.RowsSkipped)
	require.Len(t, imp.Report.Errors, 1)
	assert.Equal(t, "Saguaro", imp.Report.Errors[0].VarietyName)
	assert.Equal(t, 2, imp.Report.Errors[0].RowNumber)
}
