package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

// csvHeader is the required column layout for product uploads.
var csvHeader = []string{"name", "price", "unit", "category"}

// RowError describes one rejected CSV row. Row numbers are 1-based and
// include the header, so the first data row is row 2.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseProductsCSV reads a product upload file. Row errors are collected,
// not short-circuited, so the admin sees every problem in one pass. The
// returned inputs are only meant for upload when rowErrors is empty.
func ParseProductsCSV(r io.Reader) ([]ProductInput, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "csv file is empty")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv header")
	}
	if err := validateHeader(header); err != nil {
		return nil, nil, err
	}

	var inputs []ProductInput
	var rowErrors []RowError
	rowNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Message: "malformed csv row"})
			continue
		}
		if isBlankRow(record) {
			continue
		}
		input, rowErr := parseRow(rowNum, record)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		inputs = append(inputs, input)
	}

	return inputs, rowErrors, nil
}

func validateHeader(header []string) error {
	if len(header) < len(csvHeader) {
		return pkgerrors.New(pkgerrors.CodeValidation, "csv header must be name,price,unit,category")
	}
	for i, want := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return pkgerrors.New(pkgerrors.CodeValidation, "csv header must be name,price,unit,category")
		}
	}
	return nil
}

func parseRow(rowNum int, record []string) (ProductInput, *RowError) {
	if len(record) < 3 {
		return ProductInput{}, &RowError{Row: rowNum, Message: "expected columns name,price,unit,category"}
	}

	name := strings.TrimSpace(record[0])
	if name == "" {
		return ProductInput{}, &RowError{Row: rowNum, Message: "name is required"}
	}

	price, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(record[1]), "$"))
	if err != nil {
		return ProductInput{}, &RowError{Row: rowNum, Message: fmt.Sprintf("invalid price %q", record[1])}
	}
	if price.IsNegative() {
		return ProductInput{}, &RowError{Row: rowNum, Message: "price cannot be negative"}
	}

	unit, err := enums.ParseProductUnit(strings.ToLower(strings.TrimSpace(record[2])))
	if err != nil {
		return ProductInput{}, &RowError{Row: rowNum, Message: fmt.Sprintf("unit must be lb or each, got %q", record[2])}
	}

	category := ""
	if len(record) > 3 {
		category = strings.TrimSpace(record[3])
	}

	return ProductInput{
		Name:     name,
		Price:    price,
		Unit:     unit,
		Category: category,
	}, nil
}

func isBlankRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// SampleCSV returns a template upload file for the admin screen.
func SampleCSV() string {
	return strings.Join([]string{
		"name,price,unit,category",
		"Heirloom Tomatoes,4.50,lb,Vegetables",
		"Sweet Corn,0.75,each,Vegetables",
		"Honeycrisp Apples,3.25,lb,Fruit",
		"Sourdough Loaf,8.00,each,Bakery",
		"Wildflower Honey,12.00,each,Pantry",
	}, "\n") + "\n"
}
