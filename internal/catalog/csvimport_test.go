package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

func TestParseProductsCSVHappyPath(t *testing.T) {
	csv := "name,price,unit,category\n" +
		"Heirloom Tomatoes,4.50,lb,Vegetables\n" +
		"Sweet Corn,$0.75,each,\n"

	inputs, rowErrors, err := ParseProductsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Empty(t, rowErrors)
	require.Len(t, inputs, 2)

	require.Equal(t, "Heirloom Tomatoes", inputs[0].Name)
	require.Equal(t, "4.5", inputs[0].Price.String())
	require.Equal(t, enums.ProductUnitPound, inputs[0].Unit)
	require.Equal(t, "Vegetables", inputs[0].Category)

	require.Equal(t, enums.ProductUnitEach, inputs[1].Unit)
	require.Empty(t, inputs[1].Category)
}

func TestParseProductsCSVCollectsRowErrors(t *testing.T) {
	csv := "name,price,unit,category\n" +
		",1.00,lb,Veg\n" +
		"Corn,abc,each,Veg\n" +
		"Apples,-2,lb,Fruit\n" +
		"Basil,1.00,bundle,Herbs\n" +
		"Okra,2.00,lb,Vegetables\n"

	inputs, rowErrors, err := ParseProductsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Equal(t, "Okra", inputs[0].Name)

	require.Len(t, rowErrors, 4)
	// Row numbers are 1-based including the header row.
	require.Equal(t, 2, rowErrors[0].Row)
	require.Contains(t, rowErrors[0].Message, "name is required")
	require.Equal(t, 3, rowErrors[1].Row)
	require.Contains(t, rowErrors[1].Message, "invalid price")
	require.Equal(t, 4, rowErrors[2].Row)
	require.Contains(t, rowErrors[2].Message, "negative")
	require.Equal(t, 5, rowErrors[3].Row)
	require.Contains(t, rowErrors[3].Message, "unit must be lb or each")
}

func TestParseProductsCSVHeaderValidation(t *testing.T) {
	_, _, err := ParseProductsCSV(strings.NewReader(""))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, _, err = ParseProductsCSV(strings.NewReader("title,cost,measure,group\nCorn,1,each,Veg\n"))
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestParseProductsCSVSkipsBlankRows(t *testing.T) {
	csv := "name,price,unit,category\n" +
		"Corn,1.00,each,Veg\n" +
		",,,\n"

	inputs, rowErrors, err := ParseProductsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Empty(t, rowErrors)
	require.Len(t, inputs, 1)
}

func TestSampleCSVRoundTrips(t *testing.T) {
	inputs, rowErrors, err := ParseProductsCSV(strings.NewReader(SampleCSV()))
	require.NoError(t, err)
	require.Empty(t, rowErrors)
	require.Len(t, inputs, 5)
}
