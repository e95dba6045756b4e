package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapHeaders(t *testing.T) {
	t.Run("common layout", func(t *testing.T) {
		columns := mapHeaders([]string{
			"Variety", "Source", "Year Purchased", "Germination Rate", "Lot #", "Cost", "Qty", "Notes",
		})
		assert.Equal(t, map[Field]int{
			FieldVariety:     0,
			FieldSource:      1,
			FieldYear:        2,
			FieldGermination: 3,
			FieldLot:         4,
			FieldCost:        5,
			FieldQuantity:    6,
			FieldNotes:       7,
		}, columns)
	})

	t.Run("first matching rule decides the field", func(t *testing.T) {
		// "Germination Date" must bind to germination, not year.
		columns := mapHeaders([]string{"Germination Date", "Purchased"})
		assert.Equal(t, 0, columns[FieldGermination])
		assert.Equal(t, 1, columns[FieldYear])
	})

	t.Run("first bound column keeps the field", func(t *testing.T) {
		columns := mapHeaders([]string{"Variety Name", "Plant Name"})
		assert.Equal(t, 0, columns[FieldVariety])
	})

	t.Run("blank headers are skipped", func(t *testing.T) {
		columns := mapHeaders([]string{"", "Variety"})
		assert.Equal(t, 1, columns[FieldVariety])
	})
}
