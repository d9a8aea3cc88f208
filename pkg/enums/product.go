package enums

import "fmt"

// ProductUnit describes how a product is priced at the stand.
type ProductUnit string

const (
	ProductUnitPound ProductUnit = "lb"
	ProductUnitEach  ProductUnit = "each"
)

var validProductUnits = []ProductUnit{
	ProductUnitPound,
	ProductUnitEach,
}

// String implements fmt.Stringer.
func (u ProductUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known ProductUnit.
func (u ProductUnit) IsValid() bool {
	for _, candidate := range validProductUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseProductUnit converts raw input into a ProductUnit.
func ParseProductUnit(value string) (ProductUnit, error) {
	for _, candidate := range validProductUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product unit %q", value)
}
