package services

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/classify"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newMappingFixture(classifier classify.Classifier, batchSize int) (*MappingService, *fakeImportRepo, *fakeRowRepo) {
	imports := newFakeImportRepo()
	rows := &fakeRowRepo{}
	svc := NewMappingService(
		imports,
		rows,
		newFakeTaxonomyRepo("Vegetable", "Herb"),
		&fakeSourceRepo{},
		classifier,
		eventbus.NewEventPublisher(quietLogger()),
		batchSize,
		quietLogger(),
	)
	return svc, imports, rows
}

func echoClassifier() *fakeClassifier {
	return &fakeClassifier{fn: func(req classify.Request) ([]classify.Result, error) {
		results := make([]classify.Result, 0, len(req.Rows))
		for _, row := range req.Rows {
			results = append(results, classify.Result{
				Index:            row.Index,
				PlantType:        "Vegetable",
				Category:         "Tomato",
				NormalizedSource: "Baker Creek",
				Confidence:       0.9,
			})
		}
		return results, nil
	}}
}

func TestMappingService_Map(t *testing.T) {
	classifier := echoClassifier()
	svc, imports, rows := newMappingFixture(classifier, 2)

	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed, ParsedRows: 3})
	first := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Cherokee Purple", MappingStatus: importrow.MappingUnmapped,
	})
	dup := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 3,
		VarietyName: "cherokee   PURPLE", MappingStatus: importrow.MappingUnmapped,
	})
	other := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 4,
		VarietyName: "Brandywine", MappingStatus: importrow.MappingUnmapped,
	})

	require.NoError(t, svc.Map(testContext(), imp.ID))

	assert.Equal(t, seedimport.StatusMapped, imp.Status)
	assert.Equal(t, 3, imp.MappedRows)

	// Batch size 2 splits three rows into two requests.
	assert.Len(t, classifier.calls, 2)

	for _, row := range []*importrow.ImportRow{first, dup, other} {
		assert.Equal(t, importrow.MappingAIMapped, row.MappingStatus)
		assert.Equal(t, "Vegetable", row.MappedPlantTypeName)
		assert.Equal(t, "Tomato", row.MappedCategoryName)
		assert.Equal(t, "Baker Creek", row.MappedSourceName)
		require.NotNil(t, row.MappingConfidence)
		assert.Equal(t, 0.9, *row.MappingConfidence)
	}

	// Whitespace and case do not make distinct varieties.
	assert.Nil(t, first.DuplicateOfRowID)
	require.NotNil(t, dup.DuplicateOfRowID)
	assert.Equal(t, first.ID, *dup.DuplicateOfRowID)
	assert.Contains(t, dup.MappingNotes, "duplicate of Vegetables row 2")
	assert.Nil(t, other.DuplicateOfRowID)
}

func TestMappingService_MapBlankSourceFallsBack(t *testing.T) {
	classifier := &fakeClassifier{fn: func(req classify.Request) ([]classify.Result, error) {
		return []classify.Result{{
			Index: 0, PlantType: "Herb", Category: "Basil",
			NormalizedSource: "  ", Confidence: 0.5,
		}}, nil
	}}
	svc, imports, rows := newMappingFixture(classifier, 10)

	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed})
	row := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Herbs", RowNumber: 2,
		VarietyName: "Genovese", SeedSourceName: "Johnny's",
		MappingStatus: importrow.MappingUnmapped,
	})

	require.NoError(t, svc.Map(testContext(), imp.ID))
	assert.Equal(t, "Johnny's", row.MappedSourceName)
}

func TestMappingService_MapSkippedRowsStayUnmapped(t *testing.T) {
	classifier := &fakeClassifier{fn: func(req classify.Request) ([]classify.Result, error) {
		// Only the first row of the batch comes back.
		return []classify.Result{{
			Index: 0, PlantType: "Vegetable", Category: "Tomato", Confidence: 1,
		}}, nil
	}}
	svc, imports, rows := newMappingFixture(classifier, 10)

	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed})
	mapped := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Roma", MappingStatus: importrow.MappingUnmapped,
	})
	skipped := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 3,
		VarietyName: "San Marzano", MappingStatus: importrow.MappingUnmapped,
	})

	require.NoError(t, svc.Map(testContext(), imp.ID))

	assert.Equal(t, importrow.MappingAIMapped, mapped.MappingStatus)
	assert.Equal(t, importrow.MappingUnmapped, skipped.MappingStatus)
	assert.Equal(t, seedimport.StatusMapped, imp.Status)
	assert.Equal(t, 1, imp.MappedRows)
}

func TestMappingService_MapExcludesRejectedFromDuplicateScan(t *testing.T) {
	svc, imports, rows := newMappingFixture(echoClassifier(), 10)

	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed})
	rejected := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Cherokee Purple", MappingStatus: importrow.MappingRejected,
	})
	fresh := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 3,
		VarietyName: "Cherokee Purple", MappingStatus: importrow.MappingUnmapped,
	})

	require.NoError(t, svc.Map(testContext(), imp.ID))

	// The rejected copy is not canonical for anything.
	assert.Nil(t, rejected.DuplicateOfRowID)
	assert.Nil(t, fresh.DuplicateOfRowID)
}

func TestMappingService_MapEmitsProgressOnEntry(t *testing.T) {
	bus := eventbus.NewEventPublisher(quietLogger())
	imports := newFakeImportRepo()
	rows := &fakeRowRepo{}
	svc := NewMappingService(
		imports,
		rows,
		newFakeTaxonomyRepo("Vegetable"),
		&fakeSourceRepo{},
		echoClassifier(),
		bus,
		10,
		quietLogger(),
	)

	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed})
	rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Roma", MappingStatus: importrow.MappingUnmapped,
	})

	var statuses []seedimport.Status
	bus.Subscribe(func(e *seedimport.ProgressEvent) {
		statuses = append(statuses, e.Import.Status)
	})

	require.NoError(t, svc.Map(testContext(), imp.ID))

	// The first event announces the transition into mapping, before the
	// first batch returns.
	require.NotEmpty(t, statuses)
	assert.Equal(t, seedimport.StatusMapping, statuses[0])
	assert.Equal(t, seedimport.StatusMapped, statuses[len(statuses)-1])
}

func TestMappingService_MapNoOpWhenNotParsed(t *testing.T) {
	svc, imports, _ := newMappingFixture(echoClassifier(), 10)
	imp := imports.add(&seedimport.Import{Status: seedimport.StatusPending})

	require.NoError(t, svc.Map(testContext(), imp.ID))
	assert.Equal(t, seedimport.StatusPending, imp.Status)
}

func TestMappingService_MapClassifierFailureFailsImport(t *testing.T) {
	classifier := &fakeClassifier{fn: func(classify.Request) ([]classify.Result, error) {
		return nil, errors.New("malformed classification response")
	}}
	svc, imports, rows := newMappingFixture(classifier, 10)

	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed})
	row := rows.add(&importrow.ImportRow{
		ImportID: imp.ID, SheetName: "Vegetables", RowNumber: 2,
		VarietyName: "Roma", MappingStatus: importrow.MappingUnmapped,
	})

	err := svc.Map(testContext(), imp.ID)
	require.Error(t, err)
	assert.Equal(t, seedimport.StatusFailed, imp.Status)
	assert.Contains(t, imp.ErrorMessage, "malformed classification response")
	assert.Equal(t, importrow.MappingUnmapped, row.MappingStatus)
}
