package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]string) *Workbook {
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
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	wb, err := OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func TestSheetNames(t *testing.T) {
	wb := buildWorkbook(t, map[string][][]string{
		"Vegetables": {{"Variety"}},
	})
	assert.Equal(t, []string{"Vegetables"}, wb.SheetNames())
}

func TestSheetNamesIgnoresUnrecognized(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "HERBS"))
	_, err := f.NewSheet("Wishlist")
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	wb, err := OpenReader(buf)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"HERBS"}, wb.SheetNames())
}

func TestParseSheet(t *testing.T) {
	wb := buildWorkbook(t, map[string][][]string{
		"Vegetables": {
			{"Variety", "Source", "Year", "Germination", "Cost", "Notes"},
			{"Cherokee Purple", "Baker Creek", "2021", "85%", "$3.50", "heirloom"},
			{"", "", "", "", "", ""},
			{"Brandywine", "Johnny's", "2019-2020 batch", "poor", "", "used up last season"},
		},
	})

	rows, err := wb.ParseSheet("Vegetables")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "Vegetables", first.SheetName)
	assert.Equal(t, 2, first.RowNumber)
	assert.Equal(t, "Cherokee Purple", first.VarietyName)
	assert.Equal(t, "Baker Creek", first.SeedSourceName)
	require.NotNil(t, first.YearPurchased)
	assert.Equal(t, 2021, *first.YearPurchased)
	require.NotNil(t, first.GerminationRate)
	assert.Equal(t, "0.85", first.GerminationRate.String())
	require.NotNil(t, first.Cost)
	assert.Equal(t, "3.5", first.Cost.String())
	assert.Equal(t, "2021", first.RawDateValue)
	assert.Equal(t, "85%", first.RawGerminationValue)
	assert.Equal(t, "Cherokee Purple", first.RawData["Variety"])
	assert.False(t, first.DetectedUsedUp)
	assert.Empty(t, first.ParseWarnings)

	// Blank row 3 is skipped, source row numbers stay stable.
	second := rows[1]
	assert.Equal(t, 4, second.RowNumber)
	require.NotNil(t, second.YearPurchased)
	assert.Equal(t, 2019, *second.YearPurchased)
	assert.Nil(t, second.GerminationRate)
	assert.Len(t, second.ParseWarnings, 2)
	assert.True(t, second.DetectedUsedUp)
	assert.True(t, second.HasGrayText)
}

func TestParseSheetHeaderOnly(t *testing.T) {
	wb := buildWorkbook(t, map[string][][]string{
		"Herbs": {{"Variety", "Source"}},
	})
	rows, err := wb.ParseSheet("Herbs")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseSheetBlankHeaderFallback(t *testing.T) {
	wb := buildWorkbook(t, map[string][][]string{
		"Flowers": {
			{"Variety", ""},
			{"Zinnia", "mystery"},
		},
	})
	rows, err := wb.ParseSheet("Flowers")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mystery", rows[0].RawData["column_2"])
}
