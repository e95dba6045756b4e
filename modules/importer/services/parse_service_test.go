package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

func writeTestWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func newParseFixture() (*ParseService, *fakeImportRepo, *fakeRowRepo) {
	imports := newFakeImportRepo()
	rows := &fakeRowRepo{}
	svc := NewParseService(imports, rows, eventbus.NewEventPublisher(quietLogger()), quietLogger())
	return svc, imports, rows
}

func TestParseService_Parse(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Vegetables": {
			{"Variety", "Source", "Year"},
			{"Cherokee Purple", "Baker Creek", "2021"},
			{"Brandywine", "Johnny's", "2019"},
		},
	})
	svc, imports, rows := newParseFixture()
	imp := imports.add(&seedimport.Import{
		Filename: "inventory.xlsx", StoredPath: path,
		Status: seedimport.StatusPending,
	})

	require.NoError(t, svc.Parse(testContext(), imp.ID))

	assert.Equal(t, seedimport.StatusParsed, imp.Status)
	assert.Equal(t, []string{"Vegetables"}, imp.SheetNames)
	assert.Equal(t, 2, imp.TotalRows)
	assert.Equal(t, 2, imp.ParsedRows)

	stored, err := rows.List(testContext(), &importrow.FindParams{ImportID: imp.ID})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Cherokee Purple", stored[0].VarietyName)
	assert.Equal(t, importrow.MappingUnmapped, stored[0].MappingStatus)
	assert.Equal(t, 2, stored[0].RowNumber)
}

func TestParseService_ParseNoOpWhenNotPending(t *testing.T) {
	svc, imports, _ := newParseFixture()
	imp := imports.add(&seedimport.Import{Status: seedimport.StatusParsed})

	require.NoError(t, svc.Parse(testContext(), imp.ID))
	assert.Equal(t, seedimport.StatusParsed, imp.Status)
}

func TestParseService_ParseMissingFileFails(t *testing.T) {
	svc, imports, _ := newParseFixture()
	imp := imports.add(&seedimport.Import{
		StoredPath: filepath.Join(os.TempDir(), "does-not-exist.xlsx"),
		Status:     seedimport.StatusPending,
	})

	err := svc.Parse(testContext(), imp.ID)
	require.Error(t, err)
	assert.Equal(t, seedimport.StatusFailed, imp.Status)
	assert.NotEmpty(t, imp.ErrorMessage)
}

func TestParseService_ParseNoRecognizedSheetsFails(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Wishlist": {{"Variety"}, {"Moonflower"}},
	})
	svc, imports, _ := newParseFixture()
	imp := imports.add(&seedimport.Import{StoredPath: path, Status: seedimport.StatusPending})

	err := svc.Parse(testContext(), imp.ID)
	require.Error(t, err)
	assert.Equal(t, seedimport.StatusFailed, imp.Status)
	assert.Contains(t, imp.ErrorMessage, "no recognized sheets")
}

func TestParseService_ReparseReplacesRows(t *testing.T) {
	path := writeTestWorkbook(t, map[string][][]string{
		"Herbs": {
			{"Variety"},
			{"Genovese Basil"},
		},
	})
	svc, imports, rows := newParseFixture()
	imp := imports.add(&seedimport.Import{StoredPath: path, Status: seedimport.StatusPending})

	// Rows from an earlier parse generation.
	rows.add(&importrow.ImportRow{ImportID: imp.ID, SheetName: "Herbs", RowNumber: 2, VarietyName: "Stale"})

	require.NoError(t, svc.Parse(testContext(), imp.ID))

	stored, err := rows.List(testContext(), &importrow.FindParams{ImportID: imp.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Genovese Basil", stored[0].VarietyName)
}

func TestDecodeJobPayload(t *testing.T) {
	id, err := DecodeJobPayload(encodeJobPayload(42))
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = DecodeJobPayload([]byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeJobPayload([]byte(`not json`))
	assert.Error(t, err)
}
