package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYear(t *testing.T) {
	t.Run("plain year", func(t *testing.T) {
		year, warnings := parseYear("2021")
		require.NotNil(t, year)
		assert.Equal(t, 2021, *year)
		assert.Empty(t, warnings)
	})

	t.Run("full date", func(t *testing.T) {
		year, warnings := parseYear("2023-04-15")
		require.NotNil(t, year)
		assert.Equal(t, 2023, *year)
		assert.Empty(t, warnings)
	})

	t.Run("month and year", func(t *testing.T) {
		year, warnings := parseYear("Jan 2023")
		require.NotNil(t, year)
		assert.Equal(t, 2023, *year)
		assert.Empty(t, warnings)
	})

	t.Run("year embedded in text", func(t *testing.T) {
		year, warnings := parseYear("bought spring 2019")
		require.NotNil(t, year)
		assert.Equal(t, 2019, *year)
		assert.Empty(t, warnings)
	})

	t.Run("multiple years keeps first and warns", func(t *testing.T) {
		year, warnings := parseYear("2019-2020 batch")
		require.NotNil(t, year)
		assert.Equal(t, 2019, *year)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "multiple years")
	})

	t.Run("out of range numeric still matches a year token", func(t *testing.T) {
		year, warnings := parseYear("1985")
		require.NotNil(t, year)
		assert.Equal(t, 1985, *year)
		assert.Empty(t, warnings)
	})

	t.Run("unparseable warns", func(t *testing.T) {
		year, warnings := parseYear("sometime back")
		assert.Nil(t, year)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "could not parse year")
	})

	t.Run("blank is silent", func(t *testing.T) {
		year, warnings := parseYear("  ")
		assert.Nil(t, year)
		assert.Empty(t, warnings)
	})
}

func TestParseGermination(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"percent sign", "85%", "0.85"},
		{"whole percentage", "95", "0.95"},
		{"already a rate", "0.92", "0.92"},
		{"percentage with text", "about 70% last year", "0.7"},
		{"over one hundred clamps", "120", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rate, warnings := parseGermination(tc.raw)
			require.NotNil(t, rate)
			assert.Equal(t, tc.want, rate.String())
			assert.Empty(t, warnings)
		})
	}

	t.Run("unparseable warns", func(t *testing.T) {
		rate, warnings := parseGermination("poor")
		assert.Nil(t, rate)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "germination")
	})

	t.Run("blank is silent", func(t *testing.T) {
		rate, warnings := parseGermination("")
		assert.Nil(t, rate)
		assert.Empty(t, warnings)
	})
}

func TestParseCost(t *testing.T) {
	t.Run("currency noise", func(t *testing.T) {
		cost := parseCost("$3.50")
		require.NotNil(t, cost)
		assert.Equal(t, "3.5", cost.String())
	})

	t.Run("thousands separator", func(t *testing.T) {
		cost := parseCost("1,250.00")
		require.NotNil(t, cost)
		assert.Equal(t, "1250", cost.String())
	})

	t.Run("rounds to cents", func(t *testing.T) {
		cost := parseCost("2.999")
		require.NotNil(t, cost)
		assert.Equal(t, "3", cost.String())
	})

	t.Run("unparseable drops silently", func(t *testing.T) {
		assert.Nil(t, parseCost("free"))
	})

	t.Run("blank", func(t *testing.T) {
		assert.Nil(t, parseCost(""))
	})
}
